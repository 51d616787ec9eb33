package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diegomarin28/KERANA-sub001/internal/config"
	"github.com/diegomarin28/KERANA-sub001/internal/events"
	"github.com/diegomarin28/KERANA-sub001/internal/metrics"
	"github.com/diegomarin28/KERANA-sub001/internal/notify"
	"github.com/diegomarin28/KERANA-sub001/internal/repository"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/memory"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/handler"
	"github.com/diegomarin28/KERANA-sub001/migrations"
)

const shutdownTimeout = 15 * time.Second

// stores набор хранилищ выбранного драйвера
type stores struct {
	slots     service.SlotStore
	sessions  service.SessionStore
	outbox    service.RefundOutbox
	templates service.TemplateStore
	subjects  service.SubjectCatalog
	close     func()
}

// App собранный сервис: HTTP API и фоновые задачи
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	stores     stores
	redis      *redis.Client
	dispatcher *notify.Dispatcher
	scheduler  *Scheduler
	server     *http.Server
}

// New подключает хранилища и внешние сервисы и собирает граф зависимостей
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.stores = st

	m := metrics.New()
	loc := cfg.Location()

	opts := []service.Option{
		service.WithLocation(loc),
		service.WithMetrics(m),
		service.WithConflictRetries(cfg.Booking.CASMaxRetries),
	}

	var refunds service.RefundPublisher
	if cfg.Redis.Addr != "" {
		client, err := events.NewRedis(ctx, events.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		opts = append(opts, service.WithSlotChanges(events.NewRedisPublisher(client, "")))
		refunds = events.NewRedisRefundQueue(client, "")
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("REDIS_ADDR not set: slot change events and refund relay disabled")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Telegram.Token != "" {
		b, err := notify.NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = notify.NewTelegramNotifier(b, cfg.Telegram.ChatID, loc, logger)
	}
	a.dispatcher = notify.NewDispatcher(notifier, notify.Config{
		Workers:    cfg.Jobs.NotifyWorkers,
		MaxRetries: 3,
	}, logger)
	opts = append(opts, service.WithEvents(a.dispatcher))

	holds := service.NewHoldService(st.slots, cfg.Booking.HoldTTL, logger, opts...)
	bookings := service.NewBookingService(st.slots, st.sessions, service.BookingConfig{
		MaxParticipants: cfg.Booking.MaxGroupParticipants,
	}, logger, opts...)
	cancellation := service.NewCancellationService(st.sessions, cfg.Booking.RefundCutoff, logger, opts...)
	availability := service.NewAvailabilityService(st.slots, st.subjects, logger, opts...)
	projector := service.NewSlotProjector(st.slots, st.templates, cfg.Booking.ProjectionHorizonDays, logger, opts...)
	templates := service.NewTemplateService(st.templates, projector, logger, opts...)
	subjects := service.NewSubjectService(st.subjects, logger)
	sweeper := service.NewExpirySweeper(st.slots, cfg.Jobs.SweepBatchSize, logger, opts...)
	retention := service.NewRetentionService(st.slots, logger, opts...)

	tasks := []Task{
		{
			Name:       "slot_projection",
			Interval:   cfg.Jobs.ProjectionInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := projector.ProjectAll(ctx)
				return err
			},
		},
		{
			Name:     "expiry_sweep",
			Interval: cfg.Jobs.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := sweeper.Sweep(ctx)
				return err
			},
		},
		{
			Name:       "retention",
			Interval:   cfg.Jobs.RetentionInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := retention.Purge(ctx)
				return err
			},
		},
	}
	if refunds != nil {
		relay := service.NewRefundRelay(st.outbox, refunds, 0, logger, opts...)
		tasks = append(tasks, Task{
			Name:     "refund_outbox",
			Interval: cfg.Jobs.OutboxInterval,
			Run: func(ctx context.Context) error {
				_, err := relay.Relay(ctx)
				return err
			},
		})
	}
	a.scheduler = NewScheduler(logger, tasks...)

	h := handler.New(handler.Services{
		Holds:        holds,
		Bookings:     bookings,
		Cancellation: cancellation,
		Availability: availability,
		Templates:    templates,
		Projector:    projector,
		Subjects:     subjects,
	}, logger)

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(h, m, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run обслуживает HTTP и фоновые задачи до отмены ctx
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	a.scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.logger.Info("Shutting down HTTP server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	a.scheduler.Stop()
	a.dispatcher.Stop()

	return err
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.stores.close != nil {
		a.stores.close()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store: data is lost on restart and not shared between processes")
		m := memory.NewStore()
		return stores{slots: m, sessions: m, outbox: m, templates: m, subjects: m}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Store.DBDSN)
	if err != nil {
		return stores{}, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return stores{}, err
	}

	sessions := repository.NewSessionRepository(pool, logger)
	return stores{
		slots:     repository.NewSlotRepository(pool),
		sessions:  sessions,
		outbox:    sessions,
		templates: repository.NewWeeklyTemplateRepository(pool, logger),
		subjects:  repository.NewMentorSubjectRepository(pool),
		close:     pool.Close,
	}, nil
}

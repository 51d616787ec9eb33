package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

var (
	ErrNotStarted = errors.New("dispatcher not started")
	ErrQueueFull  = errors.New("notification queue is full")
)

// Notifier доставляет одно событие во внешний канал
type Notifier interface {
	Notify(ctx context.Context, evt model.Event) error
}

type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

type job struct {
	evt     model.Event
	attempt int
}

// Dispatcher очередь уведомлений на горутинах.
// Enqueue никогда не блокирует вызывающего: при переполнении событие отбрасывается с ошибкой.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger

	workers    int
	maxRetries int
	retryDelay time.Duration

	jobs    chan job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewDispatcher(notifier Notifier, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifier:   notifier,
		logger:     logger.With(zap.String("component", "notify_dispatcher")),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		jobs:       make(chan job, cfg.BufferSize),
	}
}

// Start запускает воркеры. Повторный вызов ничего не делает.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true

	d.logger.Info("Notification dispatcher started", zap.Int("workers", d.workers))
}

// Stop останавливает воркеры и ждёт их завершения. Неотправленные события теряются.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped", zap.Int("dropped", len(d.jobs)))
}

func (d *Dispatcher) Enqueue(evt model.Event) error {
	return d.push(job{evt: evt})
}

func (d *Dispatcher) push(j job) error {
	d.mu.Lock()
	ctx, started := d.ctx, d.started
	d.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatcher stopped: %w", err)
	}

	select {
	case d.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.jobs:
			if err := d.notifier.Notify(d.ctx, j.evt); err != nil {
				d.handleFailure(j, err)
			}
		}
	}
}

func (d *Dispatcher) handleFailure(j job, err error) {
	j.attempt++
	fields := []zap.Field{
		zap.Error(err),
		zap.String("type", string(j.evt.Type)),
		zap.String("session_id", j.evt.SessionID.String()),
		zap.Int("attempt", j.attempt),
	}

	if j.attempt > d.maxRetries {
		d.logger.Error("Notification dropped after retries", fields...)
		return
	}
	d.logger.Warn("Notification failed, retrying", fields...)

	go func() {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
		case <-timer.C:
			if err := d.push(j); err != nil {
				d.logger.Error("Failed to requeue notification",
					zap.Error(err),
					zap.String("session_id", j.evt.SessionID.String()),
				)
			}
		}
	}()
}

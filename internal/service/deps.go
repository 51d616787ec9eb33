package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/metrics"
	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// SlotStore долговременное хранилище слотов. Все изменения идут только через CompareAndSwap.
type SlotStore interface {
	Get(ctx context.Context, key model.SlotKey) (*model.Slot, error)
	BulkInsert(ctx context.Context, slots []*model.Slot) (int, error)
	CompareAndSwap(ctx context.Context, key model.SlotKey, expected, next model.SlotState) (bool, error)
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*model.Slot, error)
	ListOpen(ctx context.Context, from, to time.Time, mentorIDs []int64) ([]*model.Slot, error)
	DeleteBefore(ctx context.Context, date time.Time) (int64, error)
}

// CancelParams одна транзакция отмены: сессия, слот и инструкция возврата
type CancelParams struct {
	SessionID   uuid.UUID
	CancelledBy model.CancelledBy
	At          time.Time
	Refund      *model.RefundInstruction
}

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetActiveBySlot(ctx context.Context, key model.SlotKey) (*model.Session, error)
	Cancel(ctx context.Context, params CancelParams) (*model.Session, error)
}

type RefundOutbox interface {
	ListPending(ctx context.Context, limit int) ([]*model.RefundInstruction, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

type TemplateStore interface {
	ListActive(ctx context.Context) ([]*model.WeeklyTemplateEntry, error)
	ListByMentor(ctx context.Context, mentorID int64) ([]*model.WeeklyTemplateEntry, error)
	Replace(ctx context.Context, mentorID int64, entries []*model.WeeklyTemplateEntry) error
}

type SubjectDirectory interface {
	MentorsBySubject(ctx context.Context, subjectID int64) ([]int64, error)
}

// SubjectCatalog справочник предметов с операциями записи
type SubjectCatalog interface {
	SubjectDirectory
	Assign(ctx context.Context, ms model.MentorSubject) error
	Unassign(ctx context.Context, ms model.MentorSubject) error
}

// EventSink принимает уведомления; ошибка доставки никогда не откатывает бронирование
type EventSink interface {
	Enqueue(evt model.Event) error
}

type SlotChangePublisher interface {
	PublishSlotChange(ctx context.Context, change model.SlotChange) error
}

type RefundPublisher interface {
	PublishRefund(ctx context.Context, refund *model.RefundInstruction) error
}

type options struct {
	now     func() time.Time
	loc     *time.Location
	changes SlotChangePublisher
	events  EventSink
	metrics *metrics.Metrics
	retries uint64
}

type Option func(*options)

// WithClock подменяет источник времени (тесты)
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocation таймзона, в которой слот (date, hour) превращается во время начала
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func WithSlotChanges(p SlotChangePublisher) Option {
	return func(o *options) { o.changes = p }
}

func WithEvents(sink EventSink) Option {
	return func(o *options) { o.events = sink }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithConflictRetries ограничивает число повторов при StoreConflict
func WithConflictRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = uint64(n)
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		loc:     time.UTC,
		retries: 3,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publishChange(ctx context.Context, logger *zap.Logger, key model.SlotKey, state model.SlotState) {
	if o.changes == nil {
		return
	}
	if err := o.changes.PublishSlotChange(ctx, model.NewSlotChange(key, state, o.now())); err != nil {
		logger.Warn("Failed to publish slot change",
			zap.Error(err),
			zap.String("slot", key.String()),
		)
	}
}

func (o options) emit(logger *zap.Logger, evt model.Event) {
	if o.events == nil {
		return
	}
	if err := o.events.Enqueue(evt); err != nil {
		logger.Warn("Failed to enqueue notification",
			zap.Error(err),
			zap.String("type", string(evt.Type)),
			zap.String("session_id", evt.SessionID.String()),
		)
	}
}

const conflictBackoff = 10 * time.Millisecond

// retryOnConflict повторяет fn только при ErrStoreConflict, не более retries раз
func retryOnConflict(ctx context.Context, retries uint64, m *metrics.Metrics, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(retries, retry.NewConstant(conflictBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, model.ErrStoreConflict) {
			m.StoreConflict()
			return retry.RetryableError(err)
		}
		return err
	})
}

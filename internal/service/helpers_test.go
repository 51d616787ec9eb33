package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/memory"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

// Понедельник, 09:00 UTC
var baseTime = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Enqueue(evt model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

type recordingChanges struct {
	mu      sync.Mutex
	changes []model.SlotChange
}

func (p *recordingChanges) PublishSlotChange(_ context.Context, change model.SlotChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingChanges) States() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.State)
	}
	return out
}

// env общий стенд сервисов поверх хранилища в памяти
type env struct {
	store   *memory.Store
	clock   *fakeClock
	sink    *recordingSink
	changes *recordingChanges

	holds        *service.HoldService
	bookings     *service.BookingService
	cancellation *service.CancellationService
	availability *service.AvailabilityService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		store:   memory.NewStore(),
		clock:   newFakeClock(baseTime),
		sink:    &recordingSink{},
		changes: &recordingChanges{},
	}
	opts := e.opts()
	logger := zap.NewNop()

	e.holds = service.NewHoldService(e.store, 5*time.Minute, logger, opts...)
	e.bookings = service.NewBookingService(e.store, e.store, service.BookingConfig{MaxParticipants: 10}, logger, opts...)
	e.cancellation = service.NewCancellationService(e.store, 12*time.Hour, logger, opts...)
	e.availability = service.NewAvailabilityService(e.store, e.store, logger, opts...)
	return e
}

func (e *env) opts() []service.Option {
	return []service.Option{
		service.WithClock(e.clock.Now),
		service.WithEvents(e.sink),
		service.WithSlotChanges(e.changes),
		service.WithConflictRetries(20),
	}
}

func date(day int) time.Time {
	return time.Date(2030, time.March, day, 0, 0, 0, 0, time.UTC)
}

func key(mentorID int64, day, hour int) model.SlotKey {
	return model.NewSlotKey(mentorID, date(day), hour)
}

func (e *env) seed(t *testing.T, keys ...model.SlotKey) {
	t.Helper()
	slots := make([]*model.Slot, 0, len(keys))
	for _, k := range keys {
		slots = append(slots, &model.Slot{SlotKey: k, Modality: model.ModalityVirtual})
	}
	n, err := e.store.BulkInsert(context.Background(), slots)
	require.NoError(t, err)
	require.Equal(t, len(keys), n)
}

func (e *env) slot(t *testing.T, k model.SlotKey) *model.Slot {
	t.Helper()
	s, err := e.store.Get(context.Background(), k)
	require.NoError(t, err)
	return s
}

// book проводит слот через холд и подтверждение
func (e *env) book(t *testing.T, k model.SlotKey, studentID, price int64) *model.Session {
	t.Helper()
	ctx := context.Background()

	_, err := e.holds.PlaceHold(ctx, k, studentID)
	require.NoError(t, err)

	session, err := e.bookings.Confirm(ctx, k, studentID, model.SessionDetails{SubjectID: 1, PricePaid: price})
	require.NoError(t, err)
	return session
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/memory"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

// failingSessions отказывает в создании сессии
type failingSessions struct {
	*memory.Store
}

func (s *failingSessions) Create(context.Context, *model.Session) error {
	return errors.New("insert session: connection refused")
}

// cancellingSessions обрывает запрос на записи сессии, как отключившийся клиент
type cancellingSessions struct {
	*memory.Store
	cancel context.CancelFunc
}

func (s *cancellingSessions) Create(ctx context.Context, _ *model.Session) error {
	s.cancel()
	return ctx.Err()
}

// lostAckSessions сохраняет сессию, но сообщает об ошибке, как оборванный после коммита ответ
type lostAckSessions struct {
	*memory.Store
}

func (s *lostAckSessions) Create(ctx context.Context, session *model.Session) error {
	if err := s.Store.Create(ctx, session); err != nil {
		return err
	}
	return errors.New("read commit response: connection reset by peer")
}

func TestBookingServiceConfirm(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	desc := "Подготовка к экзамену"
	session, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{
		SubjectID:          3,
		PricePaid:          2500,
		ParticipantCount:   2,
		StudentDescription: &desc,
		Contacts:           []string{"@student"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, int64(1), session.MentorID)
	assert.Equal(t, int64(7), session.StudentID)
	assert.Equal(t, int64(3), session.SubjectID)
	assert.Equal(t, model.SessionStateConfirmed, session.State)
	assert.Equal(t, 2, session.ParticipantCount)
	assert.Equal(t, service.DefaultSessionMinutes, session.DurationMinutes)
	assert.Equal(t, int64(2500), session.PricePaid)
	assert.Equal(t, []string{"@student"}, session.Contacts)
	assert.True(t, session.StartTime.Equal(time.Date(2030, time.March, 5, 10, 0, 0, 0, time.UTC)))

	slot := e.slot(t, k)
	assert.True(t, slot.IsBooked())
	assert.Nil(t, slot.HoldExpiresAt)

	stored, err := e.bookings.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)

	events := e.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSlotBooked, events[0].Type)
	assert.Equal(t, session.ID, events[0].SessionID)
	assert.Equal(t, []string{"held", "booked"}, e.changes.States())
}

func TestBookingServiceConfirmInPersonUsesSlotLocation(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	room := "Аудитория 204"
	_, err := e.store.BulkInsert(context.Background(), []*model.Slot{{
		SlotKey:  k,
		Modality: model.ModalityInPerson,
		Location: &room,
	}})
	require.NoError(t, err)

	_, err = e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	session, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{SubjectID: 1})
	require.NoError(t, err)

	assert.Equal(t, model.ModalityInPerson, session.Modality)
	require.NotNil(t, session.Address)
	assert.Equal(t, room, *session.Address)
	assert.Equal(t, 1, session.ParticipantCount)
	assert.Empty(t, session.Contacts)
}

func TestBookingServiceConfirmWithoutHold(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{})
	assert.ErrorIs(t, err, model.ErrHoldInvalid)

	_, err = e.bookings.Confirm(context.Background(), key(1, 5, 11), 7, model.SessionDetails{})
	assert.ErrorIs(t, err, model.ErrHoldInvalid)
	assert.Empty(t, e.sink.Events())
}

func TestBookingServiceConfirmHoldOwnedByOther(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	_, err = e.bookings.Confirm(context.Background(), k, 8, model.SessionDetails{})
	assert.ErrorIs(t, err, model.ErrHoldInvalid)
	assert.True(t, e.slot(t, k).HeldBy(7))
}

func TestBookingServiceConfirmExpiredHold(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	e.clock.Advance(5*time.Minute + time.Second)

	_, err = e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{})
	assert.ErrorIs(t, err, model.ErrHoldExpired)
	assert.True(t, e.slot(t, k).Available, "expired hold is released, not left dangling")
	assert.Empty(t, e.sink.Events())
}

func TestBookingServiceConfirmIsIdempotent(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	first := e.book(t, k, 7, 1000)

	second, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{SubjectID: 1, PricePaid: 1000})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, e.sink.Events(), 1, "replay must not emit a second booking event")

	_, err = e.bookings.Confirm(context.Background(), k, 8, model.SessionDetails{})
	assert.ErrorIs(t, err, model.ErrHoldInvalid)
}

func TestBookingServiceConfirmValidatesParticipants(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	for _, count := range []int{-1, 11} {
		_, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{ParticipantCount: count})
		assert.ErrorIs(t, err, model.ErrValidation, "participants=%d", count)
	}

	_, err = e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{PricePaid: -1})
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.True(t, e.slot(t, k).HeldBy(7), "rejected confirm keeps the hold")
}

func TestBookingServiceConcurrentConfirmCreatesOneSession(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	const callers = 10
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{SubjectID: 1})
			errs[i] = err
			if s != nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, e.sink.Events(), 1)
}

func TestBookingServiceConfirmRollsBackSlotWhenSessionFails(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	bookings := service.NewBookingService(e.store, &failingSessions{Store: e.store},
		service.BookingConfig{}, zap.NewNop(), e.opts()...)

	_, err = bookings.Confirm(context.Background(), k, 7, model.SessionDetails{})
	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", model.FromError(err).Code)

	slot := e.slot(t, k)
	assert.True(t, slot.Available, "slot must not stay booked without a session")
	assert.Empty(t, e.sink.Events())
}

func TestBookingServiceConfirmRollsBackSlotWhenRequestCancelled(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bookings := service.NewBookingService(e.store, &cancellingSessions{Store: e.store, cancel: cancel},
		service.BookingConfig{}, zap.NewNop(), e.opts()...)

	_, err = bookings.Confirm(ctx, k, 7, model.SessionDetails{})
	require.ErrorIs(t, err, context.Canceled)

	slot := e.slot(t, k)
	assert.True(t, slot.Available, "slot must not stay booked without a session")

	_, err = e.holds.PlaceHold(context.Background(), k, 8)
	assert.NoError(t, err)
}

func TestBookingServiceConfirmKeepsSessionStoredDespiteCreateError(t *testing.T) {
	e := newEnv(t)
	k := key(1, 5, 10)
	e.seed(t, k)

	_, err := e.holds.PlaceHold(context.Background(), k, 7)
	require.NoError(t, err)

	bookings := service.NewBookingService(e.store, &lostAckSessions{Store: e.store},
		service.BookingConfig{}, zap.NewNop(), e.opts()...)

	session, err := bookings.Confirm(context.Background(), k, 7, model.SessionDetails{SubjectID: 2})
	require.NoError(t, err)

	stored, err := e.store.GetActiveBySlot(context.Background(), k)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.ID, stored.ID)

	slot := e.slot(t, k)
	assert.False(t, slot.Available, "slot of a stored session must stay booked")

	replayed, err := e.bookings.Confirm(context.Background(), k, 7, model.SessionDetails{SubjectID: 2})
	require.NoError(t, err)
	assert.Equal(t, session.ID, replayed.ID)
	assert.Len(t, e.sink.Events(), 1)
}

func TestBookingServiceGetSessionNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.bookings.GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

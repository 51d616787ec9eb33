package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const (
	DefaultMaxParticipants = 10
	DefaultSessionMinutes  = 60

	rollbackAttempts = 5
	rollbackTimeout  = 10 * time.Second
)

// errRollbackSkipped слот уже не в том состоянии, которое оставил этот confirm
var errRollbackSkipped = errors.New("slot changed before rollback")

type BookingConfig struct {
	MaxParticipants int
}

// BookingService превращает активный холд в подтверждённую сессию
type BookingService struct {
	slots           SlotStore
	sessions        SessionStore
	maxParticipants int
	opts            options
	logger          *zap.Logger
}

func NewBookingService(slots SlotStore, sessions SessionStore, cfg BookingConfig, logger *zap.Logger, opts ...Option) *BookingService {
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = DefaultMaxParticipants
	}
	return &BookingService{
		slots:           slots,
		sessions:        sessions,
		maxParticipants: cfg.MaxParticipants,
		opts:            buildOptions(opts),
		logger:          logger.With(zap.String("service", "booking")),
	}
}

// Confirm подтверждает бронь по холду requesterID.
// Повторный вызов после успешного подтверждения возвращает ту же сессию.
func (s *BookingService) Confirm(ctx context.Context, key model.SlotKey, requesterID int64, details model.SessionDetails) (*model.Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := s.validateDetails(&details); err != nil {
		return nil, err
	}

	var (
		session *model.Session
		created bool
	)

	err := retryOnConflict(ctx, s.opts.retries, s.opts.metrics, func(ctx context.Context) error {
		now := s.opts.now()

		slot, err := s.slots.Get(ctx, key)
		if err != nil {
			if errors.Is(err, model.ErrSlotNotFound) {
				return model.WithMessage(model.ErrHoldInvalid, "slot was never held")
			}
			return fmt.Errorf("get slot: %w", err)
		}

		if slot.IsBooked() {
			existing, err := s.sessions.GetActiveBySlot(ctx, key)
			if err != nil {
				return fmt.Errorf("get session by slot: %w", err)
			}
			if existing == nil {
				// Слот уже финализирован, а сессия ещё пишется параллельным confirm
				return model.ErrStoreConflict
			}
			if existing.StudentID != requesterID {
				return model.ErrHoldInvalid
			}
			session = existing
			return nil
		}

		if !slot.HeldBy(requesterID) {
			return model.ErrHoldInvalid
		}

		if slot.HoldExpired(now) {
			releaseExpired(ctx, s.slots, s.opts, s.logger, slot)
			return model.ErrHoldExpired
		}

		swapped, err := s.slots.CompareAndSwap(ctx, key, slot.SlotState, model.BookedState())
		if err != nil {
			return fmt.Errorf("finalize slot: %w", err)
		}
		if !swapped {
			return model.ErrStoreConflict
		}

		candidate := s.buildSession(slot, requesterID, details, now)
		if err := s.sessions.Create(ctx, candidate); err != nil {
			if s.recoverFailedCreate(ctx, key, candidate) {
				s.logger.Warn("Session create reported an error but the session was stored",
					zap.Error(err),
					zap.String("session_id", candidate.ID.String()),
				)
				session = candidate
				created = true
				return nil
			}
			return fmt.Errorf("create session: %w", err)
		}

		session = candidate
		created = true
		return nil
	})
	if err != nil {
		s.opts.metrics.Confirmation(resultLabel(err))
		return nil, err
	}

	if !created {
		s.opts.metrics.Confirmation("replayed")
		s.logger.Info("Confirm replayed for existing session",
			zap.String("session_id", session.ID.String()),
			zap.Int64("requester_id", requesterID),
		)
		return session, nil
	}

	s.opts.metrics.Confirmation("ok")
	s.opts.publishChange(ctx, s.logger, key, model.BookedState())
	s.opts.emit(s.logger, model.Event{
		Type:       model.EventSlotBooked,
		SessionID:  session.ID,
		MentorID:   session.MentorID,
		StudentID:  session.StudentID,
		StartTime:  session.StartTime,
		OccurredAt: s.opts.now(),
	})

	s.logger.Info("Session confirmed",
		zap.String("session_id", session.ID.String()),
		zap.String("slot", key.String()),
		zap.Int64("student_id", requesterID),
		zap.Int("participants", session.ParticipantCount),
		zap.Int64("price_paid", session.PricePaid),
	)

	return session, nil
}

// GetSession возвращает сессию по ID
func (s *BookingService) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// recoverFailedCreate разбирается с ошибкой записи сессии: слот не должен остаться
// забронированным без сессии. Возвращает true, если сессия candidate всё же сохранена.
// Работает на отвязанном от запроса контексте: ошибка записи часто и есть отмена ctx.
func (s *BookingService) recoverFailedCreate(ctx context.Context, key model.SlotKey, candidate *model.Session) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(rollbackAttempts, retry.NewExponential(conflictBackoff))

	var existing *model.Session
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		existing, err = s.sessions.GetActiveBySlot(ctx, key)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to check session after create failure, slot left booked",
			zap.Error(err),
			zap.String("slot", key.String()),
		)
		return false
	}
	if existing != nil {
		// Вставка прошла, ошибка пришла уже после коммита
		return existing.ID == candidate.ID
	}

	if err := s.rollbackSlot(ctx, key); err != nil {
		if errors.Is(err, errRollbackSkipped) {
			s.logger.Warn("Slot changed before rollback", zap.String("slot", key.String()))
			return false
		}
		s.logger.Error("Failed to roll back slot after session create failure",
			zap.Error(err),
			zap.String("slot", key.String()),
		)
		return false
	}

	s.logger.Warn("Slot rolled back after session create failure", zap.String("slot", key.String()))
	return false
}

// rollbackSlot возвращает слот booked→available
func (s *BookingService) rollbackSlot(ctx context.Context, key model.SlotKey) error {
	backoff := retry.WithMaxRetries(rollbackAttempts, retry.NewExponential(conflictBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		swapped, err := s.slots.CompareAndSwap(ctx, key, model.BookedState(), model.AvailableState())
		if err != nil {
			return retry.RetryableError(err)
		}
		if !swapped {
			return errRollbackSkipped
		}
		return nil
	})
}

func (s *BookingService) validateDetails(d *model.SessionDetails) error {
	if d.ParticipantCount == 0 {
		d.ParticipantCount = 1
	}
	if d.ParticipantCount < 1 || d.ParticipantCount > s.maxParticipants {
		return model.WithMessage(model.ErrValidation,
			fmt.Sprintf("participant_count must be between 1 and %d", s.maxParticipants))
	}
	if d.DurationMinutes == 0 {
		d.DurationMinutes = DefaultSessionMinutes
	}
	if d.DurationMinutes < 0 {
		return model.WithMessage(model.ErrValidation, "duration_minutes must be positive")
	}
	if d.PricePaid < 0 {
		return model.WithMessage(model.ErrValidation, "price_paid must not be negative")
	}
	return nil
}

func (s *BookingService) buildSession(slot *model.Slot, requesterID int64, d model.SessionDetails, now time.Time) *model.Session {
	session := &model.Session{
		ID:                 uuid.New(),
		MentorID:           slot.MentorID,
		StudentID:          requesterID,
		SubjectID:          d.SubjectID,
		SlotDate:           slot.Date,
		SlotHour:           slot.Hour,
		StartTime:          slot.StartTime(s.opts.loc),
		DurationMinutes:    d.DurationMinutes,
		ParticipantCount:   d.ParticipantCount,
		PricePaid:          d.PricePaid,
		Modality:           slot.Modality,
		State:              model.SessionStateConfirmed,
		StudentDescription: d.StudentDescription,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if slot.Modality == model.ModalityInPerson {
		session.Address = d.Address
		if session.Address == nil {
			session.Address = slot.Location
		}
	} else {
		session.Contacts = d.Contacts
	}

	return session
}

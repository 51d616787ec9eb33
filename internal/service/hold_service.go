package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const DefaultHoldTTL = 5 * time.Minute

// HoldService ставит, продлевает и снимает короткие эксклюзивные холды на слоты
type HoldService struct {
	slots  SlotStore
	ttl    time.Duration
	opts   options
	logger *zap.Logger
}

func NewHoldService(slots SlotStore, ttl time.Duration, logger *zap.Logger, opts ...Option) *HoldService {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &HoldService{
		slots:  slots,
		ttl:    ttl,
		opts:   buildOptions(opts),
		logger: logger.With(zap.String("service", "hold")),
	}
}

// PlaceHold занимает свободный слот для requesterID на TTL
func (s *HoldService) PlaceHold(ctx context.Context, key model.SlotKey, requesterID int64) (*model.HoldToken, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	now := s.opts.now()
	if !key.StartTime(s.opts.loc).After(now) {
		s.opts.metrics.Hold("place", "past")
		return nil, model.WithMessage(model.ErrSlotUnavailable, "slot is in the past")
	}

	next := model.HeldState(requesterID, now.Add(s.ttl))

	swapped, err := s.slots.CompareAndSwap(ctx, key, model.AvailableState(), next)
	if err != nil {
		return nil, fmt.Errorf("place hold: %w", err)
	}

	if !swapped {
		slot, err := s.slots.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}

		switch {
		case slot.HeldBy(requesterID) && !slot.HoldExpired(now):
			// Повторный запрос того же клиента: отдаём действующий холд без продления
			return &model.HoldToken{SlotKey: key, OwnerID: requesterID, ExpiresAt: *slot.HoldExpiresAt}, nil

		case slot.HoldExpired(now):
			// Просроченный холд, до которого ещё не дошёл sweeper
			swapped, err = s.slots.CompareAndSwap(ctx, key, slot.SlotState, next)
			if err != nil {
				return nil, fmt.Errorf("take over expired hold: %w", err)
			}
		}
	}

	if !swapped {
		s.opts.metrics.Hold("place", "unavailable")
		s.logger.Debug("Slot unavailable for hold",
			zap.String("slot", key.String()),
			zap.Int64("requester_id", requesterID),
		)
		return nil, model.ErrSlotUnavailable
	}

	s.opts.metrics.Hold("place", "ok")
	s.opts.publishChange(ctx, s.logger, key, next)

	s.logger.Info("Hold placed",
		zap.String("slot", key.String()),
		zap.Int64("requester_id", requesterID),
		zap.Time("expires_at", *next.HoldExpiresAt),
	)

	return &model.HoldToken{SlotKey: key, OwnerID: requesterID, ExpiresAt: *next.HoldExpiresAt}, nil
}

// RenewHold продлевает действующий холд того же владельца ещё на TTL
func (s *HoldService) RenewHold(ctx context.Context, key model.SlotKey, requesterID int64) (*model.HoldToken, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var token *model.HoldToken
	err := retryOnConflict(ctx, s.opts.retries, s.opts.metrics, func(ctx context.Context) error {
		now := s.opts.now()

		slot, err := s.slots.Get(ctx, key)
		if err != nil {
			if errors.Is(err, model.ErrSlotNotFound) {
				return model.ErrHoldInvalid
			}
			return fmt.Errorf("get slot: %w", err)
		}

		if !slot.HeldBy(requesterID) {
			return model.ErrHoldInvalid
		}

		if slot.HoldExpired(now) {
			releaseExpired(ctx, s.slots, s.opts, s.logger, slot)
			return model.ErrHoldExpired
		}

		next := model.HeldState(requesterID, now.Add(s.ttl))
		swapped, err := s.slots.CompareAndSwap(ctx, key, slot.SlotState, next)
		if err != nil {
			return fmt.Errorf("renew hold: %w", err)
		}
		if !swapped {
			return model.ErrStoreConflict
		}

		token = &model.HoldToken{SlotKey: key, OwnerID: requesterID, ExpiresAt: *next.HoldExpiresAt}
		return nil
	})
	if err != nil {
		s.opts.metrics.Hold("renew", resultLabel(err))
		return nil, err
	}

	s.opts.metrics.Hold("renew", "ok")
	s.logger.Info("Hold renewed",
		zap.String("slot", key.String()),
		zap.Int64("requester_id", requesterID),
		zap.Time("expires_at", token.ExpiresAt),
	)

	return token, nil
}

// ReleaseHold снимает холд requesterID. Идемпотентен: если холда уже нет,
// он истёк, был потреблён или принадлежит другому, ничего не меняет и не ошибается.
func (s *HoldService) ReleaseHold(ctx context.Context, key model.SlotKey, requesterID int64) error {
	if err := validateKey(key); err != nil {
		return err
	}

	released := false
	err := retryOnConflict(ctx, s.opts.retries, s.opts.metrics, func(ctx context.Context) error {
		slot, err := s.slots.Get(ctx, key)
		if err != nil {
			if errors.Is(err, model.ErrSlotNotFound) {
				return nil
			}
			return fmt.Errorf("get slot: %w", err)
		}

		if !slot.HeldBy(requesterID) {
			return nil
		}

		swapped, err := s.slots.CompareAndSwap(ctx, key, slot.SlotState, model.AvailableState())
		if err != nil {
			return fmt.Errorf("release hold: %w", err)
		}
		if !swapped {
			return model.ErrStoreConflict
		}

		released = true
		return nil
	})
	if err != nil {
		s.opts.metrics.Hold("release", resultLabel(err))
		return err
	}

	if !released {
		s.opts.metrics.Hold("release", "noop")
		return nil
	}

	s.opts.metrics.Hold("release", "ok")
	s.opts.publishChange(ctx, s.logger, key, model.AvailableState())

	s.logger.Info("Hold released",
		zap.String("slot", key.String()),
		zap.Int64("requester_id", requesterID),
	)

	return nil
}

// releaseExpired возвращает слот с просроченным холдом в пул, условно по прочитанному состоянию.
// Используется там же, где и sweeper, не дожидаясь его.
func releaseExpired(ctx context.Context, slots SlotStore, opts options, logger *zap.Logger, slot *model.Slot) bool {
	swapped, err := slots.CompareAndSwap(ctx, slot.SlotKey, slot.SlotState, model.AvailableState())
	if err != nil {
		logger.Warn("Failed to release expired hold",
			zap.Error(err),
			zap.String("slot", slot.SlotKey.String()),
		)
		return false
	}
	if swapped {
		opts.publishChange(ctx, logger, slot.SlotKey, model.AvailableState())
		logger.Info("Expired hold released",
			zap.String("slot", slot.SlotKey.String()),
			zap.Int64("hold_owner_id", *slot.HoldOwnerID),
		)
	}
	return swapped
}

func validateKey(key model.SlotKey) error {
	if key.MentorID <= 0 {
		return model.WithMessage(model.ErrValidation, "mentor_id must be positive")
	}
	if key.Hour < 0 || key.Hour > 23 {
		return model.WithMessage(model.ErrValidation, "hour must be between 0 and 23")
	}
	if key.Date.IsZero() {
		return model.WithMessage(model.ErrValidation, "date is required")
	}
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var e *model.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const DefaultRefundCutoff = 12 * time.Hour

// RefundEligible полный возврат положен, если до начала строго больше cutoff
func RefundEligible(startTime, now time.Time, cutoff time.Duration) bool {
	return startTime.Sub(now) > cutoff
}

// CancellationService отменяет подтверждённые сессии и решает вопрос возврата
type CancellationService struct {
	sessions SessionStore
	cutoff   time.Duration
	opts     options
	logger   *zap.Logger
}

func NewCancellationService(sessions SessionStore, cutoff time.Duration, logger *zap.Logger, opts ...Option) *CancellationService {
	if cutoff <= 0 {
		cutoff = DefaultRefundCutoff
	}
	return &CancellationService{
		sessions: sessions,
		cutoff:   cutoff,
		opts:     buildOptions(opts),
		logger:   logger.With(zap.String("service", "cancellation")),
	}
}

// Cancel переводит сессию в cancelled, возвращает слот в пул и записывает
// инструкцию возврата в одной транзакции хранилища
func (s *CancellationService) Cancel(ctx context.Context, sessionID uuid.UUID, by model.CancelledBy) (*model.CancellationResult, error) {
	if !by.Valid() {
		return nil, model.WithMessage(model.ErrValidation, "cancelled_by must be student or mentor")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if session.State != model.SessionStateConfirmed {
		return nil, model.WithMessage(model.ErrSessionNotCancellable,
			fmt.Sprintf("session is %s", session.State))
	}
	if !session.StartTime.After(now) {
		return nil, model.WithMessage(model.ErrSessionNotCancellable, "session already started")
	}

	eligible := RefundEligible(session.StartTime, now, s.cutoff)
	refund := &model.RefundInstruction{
		ID:          uuid.New(),
		SessionID:   session.ID,
		StudentID:   session.StudentID,
		Eligible:    eligible,
		CancelledBy: by,
		CreatedAt:   now,
	}
	if eligible {
		refund.Amount = session.PricePaid
	}

	cancelled, err := s.sessions.Cancel(ctx, CancelParams{
		SessionID:   session.ID,
		CancelledBy: by,
		At:          now,
		Refund:      refund,
	})
	if err != nil {
		return nil, err
	}

	s.opts.metrics.Cancellation(string(by), eligible)
	s.opts.publishChange(ctx, s.logger, cancelled.SlotKey(), model.AvailableState())
	s.opts.emit(s.logger, model.Event{
		Type:           model.EventSessionCancelled,
		SessionID:      cancelled.ID,
		MentorID:       cancelled.MentorID,
		StudentID:      cancelled.StudentID,
		StartTime:      cancelled.StartTime,
		CancelledBy:    &by,
		RefundEligible: eligible,
		OccurredAt:     now,
	})

	s.logger.Info("Session cancelled",
		zap.String("session_id", cancelled.ID.String()),
		zap.String("cancelled_by", string(by)),
		zap.Bool("refund_eligible", eligible),
		zap.Int64("refund_amount", refund.Amount),
		zap.Duration("time_to_start", session.StartTime.Sub(now)),
	)

	return &model.CancellationResult{
		RefundEligible: eligible,
		Refund:         refund,
		Session:        cancelled,
	}, nil
}

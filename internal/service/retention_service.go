package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// RetentionService удаляет слоты, дата которых уже прошла
type RetentionService struct {
	slots  SlotStore
	opts   options
	logger *zap.Logger
}

func NewRetentionService(slots SlotStore, logger *zap.Logger, opts ...Option) *RetentionService {
	return &RetentionService{
		slots:  slots,
		opts:   buildOptions(opts),
		logger: logger.With(zap.String("service", "retention")),
	}
}

// Purge удаляет слоты с датой раньше сегодняшней (в таймзоне сервиса)
func (s *RetentionService) Purge(ctx context.Context) (int64, error) {
	local := s.opts.now().In(s.opts.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	deleted, err := s.slots.DeleteBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("delete past slots: %w", err)
	}

	s.opts.metrics.SlotsPurged(deleted)
	if deleted > 0 {
		s.logger.Info("Past slots purged",
			zap.Int64("deleted", deleted),
			zap.String("before", today.Format(model.DateLayout)),
		)
	}

	return deleted, nil
}

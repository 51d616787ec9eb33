package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const (
	DefaultSweepBatchSize = 500
	maxSweepRounds        = 20
)

// SweepResult итог одного прогона sweeper
type SweepResult struct {
	Scanned   int
	Reclaimed int
	Skipped   int // холд продлили или потребили между чтением и записью
	Failed    int
}

// ExpirySweeper возвращает в пул слоты с просроченными холдами.
// Каждый возврат это условная запись по прочитанному hold_expires_at, поэтому
// несколько экземпляров sweeper могут работать одновременно.
type ExpirySweeper struct {
	slots     SlotStore
	batchSize int
	opts      options
	logger    *zap.Logger
}

func NewExpirySweeper(slots SlotStore, batchSize int, logger *zap.Logger, opts ...Option) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &ExpirySweeper{
		slots:     slots,
		batchSize: batchSize,
		opts:      buildOptions(opts),
		logger:    logger.With(zap.String("service", "expiry_sweeper")),
	}
}

// Sweep выполняет один прогон. Ошибки по отдельным слотам логируются и не прерывают пачку.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var total SweepResult

	for round := 0; round < maxSweepRounds; round++ {
		res, err := s.sweepBatch(ctx)
		total.Scanned += res.Scanned
		total.Reclaimed += res.Reclaimed
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			return total, err
		}

		// Пачка неполная или без прогресса, дальше сканировать нечего
		if res.Scanned < s.batchSize || res.Reclaimed == 0 {
			break
		}
	}

	s.opts.metrics.SweepReclaimed(total.Reclaimed)

	if total.Scanned > 0 {
		s.logger.Info("Expiry sweep completed",
			zap.Int("scanned", total.Scanned),
			zap.Int("reclaimed", total.Reclaimed),
			zap.Int("skipped", total.Skipped),
			zap.Int("failed", total.Failed),
		)
	}

	return total, nil
}

func (s *ExpirySweeper) sweepBatch(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	now := s.opts.now()
	expired, err := s.slots.FindExpiredHolds(ctx, now, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("find expired holds: %w", err)
	}
	res.Scanned = len(expired)

	for _, slot := range expired {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		swapped, err := s.slots.CompareAndSwap(ctx, slot.SlotKey, slot.SlotState, model.AvailableState())
		if err != nil {
			res.Failed++
			s.opts.metrics.SweepFailure()
			s.logger.Warn("Failed to reclaim expired hold",
				zap.Error(err),
				zap.String("slot", slot.SlotKey.String()),
			)
			continue
		}

		if !swapped {
			res.Skipped++
			s.logger.Debug("Hold changed since scan, skipping",
				zap.String("slot", slot.SlotKey.String()),
			)
			continue
		}

		res.Reclaimed++
		s.opts.publishChange(ctx, s.logger, slot.SlotKey, model.AvailableState())
	}

	return res, nil
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const DefaultRelayBatchSize = 100

// RefundRelay переносит инструкции возврата из outbox хранилища в очередь платёжного сервиса.
// Доставка at-least-once: запись помечается опубликованной только после успешной отправки.
type RefundRelay struct {
	outbox    RefundOutbox
	publisher RefundPublisher
	batchSize int
	opts      options
	logger    *zap.Logger
}

func NewRefundRelay(outbox RefundOutbox, publisher RefundPublisher, batchSize int, logger *zap.Logger, opts ...Option) *RefundRelay {
	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}
	return &RefundRelay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		opts:      buildOptions(opts),
		logger:    logger.With(zap.String("service", "refund_relay")),
	}
}

// Relay отправляет одну пачку. Ошибка отправки останавливает пачку,
// оставшиеся записи уйдут в следующем прогоне.
func (r *RefundRelay) Relay(ctx context.Context) (int, error) {
	pending, err := r.outbox.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending refunds: %w", err)
	}

	sent := 0
	for _, refund := range pending {
		if err := r.publisher.PublishRefund(ctx, refund); err != nil {
			r.opts.metrics.RefundsRelayed(sent)
			return sent, fmt.Errorf("publish refund %s: %w", refund.ID, err)
		}

		if err := r.outbox.MarkPublished(ctx, refund.ID, r.opts.now()); err != nil {
			// Инструкция уже в очереди; повторная отправка допустима, потребитель дедуплицирует по ID
			r.logger.Warn("Failed to mark refund published",
				zap.Error(err),
				zap.String("refund_id", refund.ID.String()),
			)
			continue
		}
		sent++
	}

	r.opts.metrics.RefundsRelayed(sent)
	if sent > 0 {
		r.logger.Info("Refund instructions relayed", zap.Int("count", sent))
	}

	return sent, nil
}

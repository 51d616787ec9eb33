package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const (
	DefaultSlotChannel = "booking:slot_changes"
	DefaultRefundQueue = "booking:refund_instructions"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis возвращает клиента Redis, проверенного PING
func NewRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisPublisher рассылает изменения слотов подписчикам календаря через PUBLISH
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultSlotChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishSlotChange(ctx context.Context, change model.SlotChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal slot change: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish slot change: %w", err)
	}
	return nil
}

// RedisRefundQueue кладёт инструкции возврата в список, который разбирает платёжный сервис
type RedisRefundQueue struct {
	client redis.Cmdable
	key    string
}

func NewRedisRefundQueue(client redis.Cmdable, key string) *RedisRefundQueue {
	if key == "" {
		key = DefaultRefundQueue
	}
	return &RedisRefundQueue{client: client, key: key}
}

func (q *RedisRefundQueue) PublishRefund(ctx context.Context, refund *model.RefundInstruction) error {
	payload, err := json.Marshal(refund)
	if err != nil {
		return fmt.Errorf("marshal refund: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push refund: %w", err)
	}
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// fakeRedis перехватывает только команды, которые используют издатели
type fakeRedis struct {
	redis.Cmdable
	published map[string][]string
	pushed    map[string][]string
	err       error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{published: map[string][]string{}, pushed: map[string][]string{}}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.pushed[key])))
	return cmd
}

func TestRedisPublisherPublishSlotChange(t *testing.T) {
	client := newFakeRedis()
	p := NewRedisPublisher(client, "")

	at := time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)
	k := model.NewSlotKey(1, time.Date(2030, time.March, 5, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, p.PublishSlotChange(context.Background(), model.NewSlotChange(k, model.HeldState(7, at), at)))

	msgs := client.published[DefaultSlotChannel]
	require.Len(t, msgs, 1)

	var got model.SlotChange
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &got))
	assert.Equal(t, int64(1), got.MentorID)
	assert.Equal(t, "2030-03-05", got.Date)
	assert.Equal(t, 10, got.Hour)
	assert.Equal(t, "held", got.State)
}

func TestRedisRefundQueuePublishRefund(t *testing.T) {
	client := newFakeRedis()
	q := NewRedisRefundQueue(client, "refunds")

	refund := &model.RefundInstruction{ID: uuid.New(), SessionID: uuid.New(), Eligible: true, Amount: 1500}
	require.NoError(t, q.PublishRefund(context.Background(), refund))

	require.Len(t, client.pushed["refunds"], 1)
	assert.Contains(t, client.pushed["refunds"][0], refund.ID.String())
	assert.Contains(t, client.pushed["refunds"][0], `"refund_eligible":true`)
}

func TestRedisPublishersReturnErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")

	err := NewRedisPublisher(client, "").PublishSlotChange(context.Background(), model.SlotChange{})
	assert.ErrorContains(t, err, "connection refused")

	err = NewRedisRefundQueue(client, "").PublishRefund(context.Background(), &model.RefundInstruction{})
	assert.ErrorContains(t, err, "connection refused")
}

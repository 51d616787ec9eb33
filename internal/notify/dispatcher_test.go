package notify

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
)

type stubNotifier struct {
	mu        sync.Mutex
	failures  int
	delivered chan model.Event
	calls     int
}

func (n *stubNotifier) Notify(_ context.Context, evt model.Event) error {
	n.mu.Lock()
	n.calls++
	if n.failures > 0 {
		n.failures--
		n.mu.Unlock()
		return errors.New("telegram: 502 bad gateway")
	}
	n.mu.Unlock()

	n.delivered <- evt
	return nil
}

// blockingNotifier держит воркер, пока тест не отпустит его
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) Notify(ctx context.Context, _ model.Event) error {
	n.started <- struct{}{}
	select {
	case <-n.release:
	case <-ctx.Done():
	}
	return nil
}

func event() model.Event {
	return model.Event{Type: model.EventSlotBooked, SessionID: uuid.New(), MentorID: 1, StudentID: 7}
}

func TestDispatcherDelivers(t *testing.T) {
	n := &stubNotifier{delivered: make(chan model.Event, 1)}
	d := NewDispatcher(n, Config{Workers: 2}, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	evt := event()
	require.NoError(t, d.Enqueue(evt))

	select {
	case got := <-n.delivered:
		assert.Equal(t, evt.SessionID, got.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	n := &stubNotifier{failures: 2, delivered: make(chan model.Event, 1)}
	d := NewDispatcher(n, Config{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond}, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(event()))

	select {
	case <-n.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered after retries")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Equal(t, 3, n.calls)
}

func TestDispatcherNotStarted(t *testing.T) {
	d := NewDispatcher(&stubNotifier{}, Config{}, zap.NewNop())
	assert.ErrorIs(t, d.Enqueue(event()), ErrNotStarted)

	// Stop без Start не блокирует
	d.Stop()
}

func TestDispatcherQueueFullDoesNotBlock(t *testing.T) {
	n := &blockingNotifier{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := NewDispatcher(n, Config{Workers: 1, BufferSize: 1}, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(event()))
	select {
	case <-n.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the first event")
	}

	require.NoError(t, d.Enqueue(event()))
	assert.ErrorIs(t, d.Enqueue(event()), ErrQueueFull)

	close(n.release)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(&stubNotifier{delivered: make(chan model.Event, 1)}, Config{}, zap.NewNop())
	d.Start(context.Background())
	d.Stop()

	assert.Error(t, d.Enqueue(event()))
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSchedulerRunsTasks(t *testing.T) {
	var startup, ticking, failing atomic.Int32

	s := NewScheduler(zap.NewNop(),
		Task{
			Name:       "startup",
			Interval:   time.Hour,
			RunOnStart: true,
			Run: func(context.Context) error {
				startup.Add(1)
				return nil
			},
		},
		Task{
			Name:     "ticking",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) error {
				ticking.Add(1)
				return nil
			},
		},
		Task{
			Name:     "failing",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) error {
				failing.Add(1)
				if failing.Load() == 1 {
					panic("boom")
				}
				return errors.New("still broken")
			},
		},
		Task{
			Name:     "disabled",
			Interval: 0,
			Run: func(context.Context) error {
				t.Error("disabled task must not run")
				return nil
			},
		},
	)

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return ticking.Load() >= 3 && failing.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	assert.Equal(t, int32(1), startup.Load())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(zap.NewNop(), Task{
		Name:     "noop",
		Interval: time.Hour,
		Run:      func(context.Context) error { return nil },
	})

	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

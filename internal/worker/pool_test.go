package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDropsUnknownTask(t *testing.T) {
	q, _, _ := setupQueue(t)
	p := NewPool(q, 1)

	err := p.dispatch(context.Background(), mustTask(t, "nobody.handles.this", nil))
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestDispatchRecoversPanic(t *testing.T) {
	q, _, _ := setupQueue(t)
	p := NewPool(q, 1)
	p.Handle("boom", func(context.Context, Task) error { panic("kaboom") })

	err := p.dispatch(context.Background(), mustTask(t, "boom", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestDispatchReturnsHandlerError(t *testing.T) {
	q, _, _ := setupQueue(t)
	p := NewPool(q, 1)
	want := errors.New("nope")
	p.Handle("fails", func(context.Context, Task) error { return want })

	assert.ErrorIs(t, p.dispatch(context.Background(), mustTask(t, "fails", nil)), want)
}

func TestPoolProcessesQueuedAndDelayedTasks(t *testing.T) {
	q, _, _ := setupQueue(t)
	p := NewPool(q, 2)
	p.pollTimeout = time.Second
	p.promoteInterval = 20 * time.Millisecond

	var handled atomic.Int32
	p.Handle("count", func(context.Context, Task) error {
		handled.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, mustTask(t, "count", nil)))
	require.NoError(t, q.EnqueueAt(ctx, mustTask(t, "count", nil), time.Now().Add(50*time.Millisecond)))

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return handled.Load() == 2 }, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

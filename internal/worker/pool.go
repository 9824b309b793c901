package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

const (
	// DefaultConcurrency is the number of worker goroutines.
	DefaultConcurrency = 4

	// DefaultPollTimeout is how long one dequeue blocks.
	DefaultPollTimeout = 2 * time.Second

	// DefaultPromoteInterval is how often delayed tasks are checked.
	DefaultPromoteInterval = time.Second
)

// Handler processes one task. Returning an error marks the attempt failed;
// handlers schedule their own retries.
type Handler func(ctx context.Context, task Task) error

// Pool runs handlers for tasks taken off a Queue.
type Pool struct {
	queue           *Queue
	concurrency     int
	pollTimeout     time.Duration
	promoteInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewPool creates a pool. Zero or negative concurrency uses
// DefaultConcurrency.
func NewPool(queue *Queue, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pool{
		queue:           queue,
		concurrency:     concurrency,
		pollTimeout:     DefaultPollTimeout,
		promoteInterval: DefaultPromoteInterval,
		handlers:        make(map[string]Handler),
	}
}

// Handle registers h for taskType, replacing any previous handler.
func (p *Pool) Handle(taskType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskType] = h
}

// Start runs the workers and the delayed-task promoter. It blocks until
// ctx is cancelled and every in-progress task has returned.
func (p *Pool) Start(ctx context.Context) {
	logger.Info("[Pool] starting", "concurrency", p.concurrency)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.promoteLoop(ctx)
	}()
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workLoop(ctx, id)
		}(i)
	}
	wg.Wait()
	logger.Info("[Pool] stopped")
}

func (p *Pool) workLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[Pool] dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollTimeout):
			}
			continue
		}
		if task == nil {
			continue
		}
		// Tasks already dequeued run to completion on shutdown.
		p.dispatch(context.WithoutCancel(ctx), *task)
	}
}

func (p *Pool) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(p.promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := p.queue.PromoteDue(ctx, now, 0); err != nil {
				if ctx.Err() == nil {
					logger.Warn("[Pool] promote failed", "error", err)
				}
			} else if n > 0 {
				logger.Debug("[Pool] promoted delayed tasks", "count", n)
			}
		}
	}
}

// dispatch runs the handler for task and records the outcome. Unknown
// task types are dropped.
func (p *Pool) dispatch(ctx context.Context, task Task) error {
	p.mu.RLock()
	h, ok := p.handlers[task.Type]
	p.mu.RUnlock()
	if !ok {
		logger.Error("[Pool] dropping task with no handler", "task_id", task.ID, "type", task.Type)
		metrics.IncreaseTasksMetric(task.Type, metrics.OutcomeDropped)
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.Type)
	}

	start := time.Now()
	err := safeRun(ctx, h, task)
	if err != nil {
		logger.Error("[Pool] task failed", "task_id", task.ID, "type", task.Type,
			"attempt", task.Attempt, "duration", time.Since(start), "error", err)
		metrics.IncreaseTasksMetric(task.Type, metrics.OutcomeFailure)
		return err
	}
	logger.Debug("[Pool] task done", "task_id", task.ID, "type", task.Type, "duration", time.Since(start))
	metrics.IncreaseTasksMetric(task.Type, metrics.OutcomeSuccess)
	return nil
}

// safeRun converts a handler panic into an error.
func safeRun(ctx context.Context, h Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Pool] task panicked", "task_id", task.ID, "type", task.Type, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task %s panicked: %v", task.Type, r)
		}
	}()
	return h(ctx, task)
}

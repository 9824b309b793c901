package worker

import (
	"context"
	"time"

	"github.com/ignite/event-etl/internal/pkg/distlock"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// DefaultScheduleInterval matches a "0 */3 * * *" cron.
const DefaultScheduleInterval = 3 * time.Hour

// BatchDispatcher starts a batch run.
type BatchDispatcher interface {
	DispatchBatch(ctx context.Context) (string, error)
}

// LockFactory returns the lock guarding one schedule slot.
type LockFactory func(name string) distlock.Lock

// Scheduler dispatches a batch at every multiple of interval on the wall
// clock. Replicas wake for the same slot and race for the slot's lock, so
// exactly one of them dispatches.
type Scheduler struct {
	dispatcher BatchDispatcher
	locks      LockFactory
	interval   time.Duration
	now        func() time.Time
}

// NewScheduler creates a scheduler. A zero interval uses
// DefaultScheduleInterval.
func NewScheduler(d BatchDispatcher, locks LockFactory, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	return &Scheduler{dispatcher: d, locks: locks, interval: interval, now: time.Now}
}

// Start blocks until ctx is cancelled, dispatching at each slot.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("[Scheduler] starting", "interval", s.interval)
	for {
		next := s.nextSlot(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("[Scheduler] stopping")
			return
		case <-timer.C:
			s.tick(ctx, next)
		}
	}
}

// nextSlot returns the first interval boundary strictly after t.
func (s *Scheduler) nextSlot(t time.Time) time.Time {
	return t.UTC().Truncate(s.interval).Add(s.interval)
}

// tick dispatches for slot if this replica wins the slot's lock. The lock
// is held for half an interval so a replica with a slow clock cannot take
// the same slot after the winner finished.
func (s *Scheduler) tick(ctx context.Context, slot time.Time) bool {
	lock := s.locks("etl:schedule:" + slot.Format(time.RFC3339))
	ok, err := lock.TryAcquire(ctx)
	if err != nil {
		logger.Error("[Scheduler] lock failed, skipping slot", "slot", slot, "error", err)
		return false
	}
	if !ok {
		logger.Debug("[Scheduler] another replica owns slot", "slot", slot)
		return false
	}
	time.AfterFunc(s.interval/2, func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("[Scheduler] lock release failed", "slot", slot, "error", err)
		}
	})

	id, err := s.dispatcher.DispatchBatch(ctx)
	if err != nil {
		logger.Error("[Scheduler] dispatch failed", "slot", slot, "error", err)
		return false
	}
	logger.Info("[Scheduler] batch dispatched", "slot", slot, "chain_id", id)
	return true
}

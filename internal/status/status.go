// Package status stores the process-wide processing flag in Redis.
//
// Every unit of background work (a batch run or one uploaded document)
// calls Begin when it is dispatched and Finish when it reaches a terminal
// outcome. Begin sets "running"; the Finish that brings the in-flight
// count back to zero sets "complete". The reader path consumes "complete"
// exactly once: the first Consume that observes it gets "complete" and
// atomically resets the flag to "idle". An absent or unreadable flag is
// "idle".
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

const (
	// DefaultKey is the Redis key holding the flag.
	DefaultKey = "scrape_status"

	// DefaultRunningTTL bounds how long an abandoned "running" flag lives.
	DefaultRunningTTL = time.Hour

	inflightSuffix = ":inflight"
)

// beginScript counts one more unit in flight and marks the flag running.
// Both keys share the running TTL so a crashed worker cannot pin them.
var beginScript = redis.NewScript(`
	local n = redis.call("incr", KEYS[2])
	local ttl = tonumber(ARGV[2])
	if ttl > 0 then
		redis.call("pexpire", KEYS[2], ttl)
		redis.call("set", KEYS[1], ARGV[1], "PX", ttl)
	else
		redis.call("set", KEYS[1], ARGV[1])
	end
	return n
`)

// finishScript counts one unit done; the last one sets complete.
var finishScript = redis.NewScript(`
	local n = redis.call("decr", KEYS[2])
	if n <= 0 then
		redis.call("del", KEYS[2])
		redis.call("set", KEYS[1], ARGV[1])
		return 0
	end
	return n
`)

// consumeScript returns the stored value and resets "complete" to "idle"
// in the same step so only one reader ever sees "complete".
var consumeScript = redis.NewScript(`
	local v = redis.call("get", KEYS[1])
	if v == ARGV[1] then
		redis.call("set", KEYS[1], ARGV[2])
	end
	return v
`)

// Store reads and writes the processing flag. A nil client behaves as an
// unavailable store: reads return idle and writes are dropped.
type Store struct {
	client     *redis.Client
	key        string
	runningTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the Redis key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithRunningTTL overrides the expiry of the running flag. Zero disables it.
func WithRunningTTL(ttl time.Duration) Option {
	return func(s *Store) { s.runningTTL = ttl }
}

// New creates a status store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, key: DefaultKey, runningTTL: DefaultRunningTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current flag without consuming it.
func (s *Store) Get(ctx context.Context) domain.ProcessingStatus {
	if s == nil || s.client == nil {
		return domain.StatusIdle
	}
	v, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("[Status] read failed, reporting idle", "error", err)
		}
		return domain.StatusIdle
	}
	return domain.ParseStatus(v)
}

// Set writes the flag. Running expires after the configured TTL so a
// crashed batch cannot leave readers waiting forever.
func (s *Store) Set(ctx context.Context, st domain.ProcessingStatus) error {
	if s == nil || s.client == nil {
		return nil
	}
	var ttl time.Duration
	if st == domain.StatusRunning {
		ttl = s.runningTTL
	}
	if err := s.client.Set(ctx, s.key, string(st), ttl).Err(); err != nil {
		return fmt.Errorf("set status %s: %w", st, err)
	}
	return nil
}

// Begin records one more unit of work in flight and sets running.
func (s *Store) Begin(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	err := beginScript.Run(ctx, s.client, []string{s.key, s.key + inflightSuffix},
		string(domain.StatusRunning), s.runningTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("begin status: %w", err)
	}
	return nil
}

// Touch refreshes the running flag and the in-flight count expiry during a
// long unit of work.
func (s *Store) Touch(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.Set(ctx, domain.StatusRunning); err != nil {
		return err
	}
	if s.runningTTL > 0 {
		if err := s.client.PExpire(ctx, s.key+inflightSuffix, s.runningTTL).Err(); err != nil {
			return fmt.Errorf("touch status: %w", err)
		}
	}
	return nil
}

// Finish records one unit of work done. It returns the number still in
// flight; at zero the flag is set to complete.
func (s *Store) Finish(ctx context.Context) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	n, err := finishScript.Run(ctx, s.client, []string{s.key, s.key + inflightSuffix},
		string(domain.StatusComplete)).Int64()
	if err != nil {
		return 0, fmt.Errorf("finish status: %w", err)
	}
	return n, nil
}

// Consume returns the current flag and, when it is complete, resets it to
// idle atomically.
func (s *Store) Consume(ctx context.Context) domain.ProcessingStatus {
	if s == nil || s.client == nil {
		return domain.StatusIdle
	}
	v, err := consumeScript.Run(ctx, s.client, []string{s.key},
		string(domain.StatusComplete), string(domain.StatusIdle)).Text()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("[Status] consume failed, reporting idle", "error", err)
		}
		return domain.StatusIdle
	}
	return domain.ParseStatus(v)
}

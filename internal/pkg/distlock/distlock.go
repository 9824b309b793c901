// Package distlock elects a single holder for periodic work shared by
// several worker replicas.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a non-blocking distributed lock.
type Lock interface {
	// TryAcquire reports whether this holder now owns the lock.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this holder still owns it.
	Release(ctx context.Context) error
}

// New picks Redis when a client is available and falls back to a
// PostgreSQL advisory lock otherwise.
func New(client *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if client != nil {
		return NewRedisLock(client, name, ttl)
	}
	return NewAdvisoryLock(db, name)
}

// Do runs fn only if the lock is acquired. It reports whether fn ran.
func Do(ctx context.Context, l Lock, fn func(ctx context.Context) error) (bool, error) {
	ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer l.Release(context.WithoutCancel(ctx))
	return true, fn(ctx)
}

// AdvisoryLock holds pg_try_advisory_lock on a pinned connection. Advisory
// locks are session scoped, so the same connection must be used to release
// them; a dropped connection releases the lock.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewAdvisoryLock derives a stable lock id from name.
func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

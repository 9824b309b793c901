package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/domain"
)

func setupStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts...), mr
}

func TestAbsentFlagIsIdle(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	assert.Equal(t, domain.StatusIdle, s.Get(ctx))
	assert.Equal(t, domain.StatusIdle, s.Consume(ctx))
}

func TestCompleteIsDeliveredOnce(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, domain.StatusComplete))
	assert.Equal(t, domain.StatusComplete, s.Consume(ctx))
	assert.Equal(t, domain.StatusIdle, s.Consume(ctx))

	v, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "idle", v)
}

func TestConcurrentConsumersSeeCompleteOnce(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, domain.StatusComplete))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		complete int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume(ctx) == domain.StatusComplete {
				mu.Lock()
				complete++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, complete)
}

func TestRunningIsNotConsumed(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, domain.StatusRunning))
	assert.Equal(t, domain.StatusRunning, s.Consume(ctx))
	assert.Equal(t, domain.StatusRunning, s.Get(ctx))
}

func TestRunningExpires(t *testing.T) {
	s, mr := setupStore(t, WithRunningTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, domain.StatusRunning))
	assert.Equal(t, time.Minute, mr.TTL(DefaultKey))

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, domain.StatusIdle, s.Get(ctx))

	require.NoError(t, s.Set(ctx, domain.StatusComplete))
	assert.Zero(t, mr.TTL(DefaultKey), "complete does not expire")
}

func TestUnknownValueIsIdle(t *testing.T) {
	s, mr := setupStore(t, WithKey("custom_status"))
	require.NoError(t, mr.Set("custom_status", "exploded"))
	assert.Equal(t, domain.StatusIdle, s.Get(context.Background()))
}

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()

	var nilStore *Store
	assert.Equal(t, domain.StatusIdle, nilStore.Get(ctx))
	assert.NoError(t, nilStore.Set(ctx, domain.StatusRunning))

	s := New(nil)
	assert.Equal(t, domain.StatusIdle, s.Consume(ctx))

	down, mr := setupStore(t)
	mr.Close()
	assert.Equal(t, domain.StatusIdle, down.Get(ctx))
	assert.Equal(t, domain.StatusIdle, down.Consume(ctx))
	assert.Error(t, down.Set(ctx, domain.StatusRunning))
}

func TestCompleteWaitsForLastUnit(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Begin(ctx))
	assert.Equal(t, domain.StatusRunning, s.Get(ctx))
	assert.Equal(t, DefaultRunningTTL, mr.TTL(DefaultKey))

	n, err := s.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, domain.StatusRunning, s.Get(ctx))

	n, err = s.Finish(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.StatusComplete, s.Consume(ctx))
	assert.False(t, mr.Exists(DefaultKey+inflightSuffix))
}

func TestFinishAfterCounterExpired(t *testing.T) {
	s, mr := setupStore(t, WithRunningTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	mr.FastForward(2 * time.Minute)

	n, err := s.Finish(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.StatusComplete, s.Get(ctx))
}

func TestTouchRefreshesExpiry(t *testing.T) {
	s, mr := setupStore(t, WithRunningTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	mr.FastForward(50 * time.Second)
	require.NoError(t, s.Touch(ctx))
	mr.FastForward(50 * time.Second)

	assert.Equal(t, domain.StatusRunning, s.Get(ctx))
	assert.True(t, mr.Exists(DefaultKey+inflightSuffix))
}

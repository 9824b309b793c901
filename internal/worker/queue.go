package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName prefixes the queue's Redis keys.
const DefaultQueueName = "etl:tasks"

// promoteScript moves due tasks from the delayed set to the ready list.
// Running it as one script keeps two workers from promoting the same task.
var promoteScript = redis.NewScript(`
	local due = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
	for _, t in ipairs(due) do
		redis.call("zrem", KEYS[1], t)
		redis.call("lpush", KEYS[2], t)
	end
	return #due
`)

// Queue is a Redis-backed FIFO of tasks plus a delayed set for retries.
type Queue struct {
	client  *redis.Client
	ready   string
	delayed string
}

// NewQueue creates a queue under name. An empty name uses DefaultQueueName.
func NewQueue(client *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultQueueName
	}
	return &Queue{client: client, ready: name + ":ready", delayed: name + ":delayed"}
}

// Enqueue makes t available to workers now.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.ready, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Type, err)
	}
	return nil
}

// EnqueueAt makes t available once at has passed.
func (q *Queue) EnqueueAt(ctx context.Context, t Task, at time.Time) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	err = q.client.ZAdd(ctx, q.delayed, redis.Z{Score: float64(at.UnixMilli()), Member: data}).Err()
	if err != nil {
		return fmt.Errorf("schedule %s: %w", t.Type, err)
	}
	return nil
}

// Dequeue waits up to timeout for a ready task. It returns nil, nil when
// none arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.ready).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// BRPOP replies with [key, value].
	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

// PromoteDue moves up to limit delayed tasks that are due at now onto the
// ready list and returns how many moved.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	n, err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.ready}, now.UnixMilli(), limit).Int()
	if err != nil {
		return 0, fmt.Errorf("promote due tasks: %w", err)
	}
	return n, nil
}

// Len returns the number of ready and delayed tasks.
func (q *Queue) Len(ctx context.Context) (ready, delayed int64, err error) {
	pipe := q.client.Pipeline()
	r := pipe.LLen(ctx, q.ready)
	d := pipe.ZCard(ctx, q.delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("queue length: %w", err)
	}
	return r.Val(), d.Val(), nil
}

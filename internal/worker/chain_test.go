package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain runs every ready task through p until the queue is empty and
// returns the handler errors in order.
func drain(t *testing.T, q *Queue, p *Pool) []error {
	t.Helper()
	ctx := context.Background()
	var errs []error
	for i := 0; i < 50; i++ {
		ready, _, err := q.Len(ctx)
		require.NoError(t, err)
		if ready == 0 {
			return errs
		}
		task, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, task)
		errs = append(errs, p.dispatch(ctx, *task))
	}
	t.Fatal("queue never drained")
	return nil
}

func TestChainPassesOutputToNextStep(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)
	p := NewPool(q, 1)
	p.Handle(TaskChain, c.Handle)

	c.RegisterStep("double", func(_ context.Context, in json.RawMessage) (json.RawMessage, error) {
		var n int
		if err := json.Unmarshal(in, &n); err != nil {
			return nil, err
		}
		return json.Marshal(n * 2)
	})

	var results []ChainResult
	c.OnFinish("math", func(_ context.Context, res ChainResult) { results = append(results, res) })

	id, err := c.Start(context.Background(), "math", []string{"double", "double", "double"}, 3)
	require.NoError(t, err)

	for _, e := range drain(t, q, p) {
		assert.NoError(t, e)
	}
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ChainID)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].FailedStep)
	assert.Len(t, results[0].Completed, 3)
	assert.JSONEq(t, "24", string(results[0].Output))
}

func TestChainFailureSkipsLaterSteps(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)
	p := NewPool(q, 1)
	p.Handle(TaskChain, c.Handle)

	ran := map[string]int{}
	c.RegisterStep("extract", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		ran["extract"]++
		return nil, errors.New("source down")
	})
	c.RegisterStep("load", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		ran["load"]++
		return nil, nil
	})

	var results []ChainResult
	c.OnFinish("etl", func(_ context.Context, res ChainResult) { results = append(results, res) })

	_, err := c.Start(context.Background(), "etl", []string{"extract", "load"}, nil)
	require.NoError(t, err)

	errs := drain(t, q, p)
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
	assert.Equal(t, 1, ran["extract"])
	assert.Zero(t, ran["load"])

	require.Len(t, results, 1)
	assert.Equal(t, "extract", results[0].FailedStep)
	assert.Empty(t, results[0].Completed)
}

func TestChainStepPanicEndsChain(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)
	p := NewPool(q, 1)
	p.Handle(TaskChain, c.Handle)

	c.RegisterStep("bad", func(context.Context, json.RawMessage) (json.RawMessage, error) { panic("oops") })
	finished := 0
	c.OnFinish("p", func(_ context.Context, res ChainResult) {
		finished++
		assert.Error(t, res.Err)
	})

	_, err := c.Start(context.Background(), "p", []string{"bad"}, nil)
	require.NoError(t, err)
	drain(t, q, p)
	assert.Equal(t, 1, finished)
}

func TestChainStartValidatesSteps(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)

	_, err := c.Start(context.Background(), "empty", nil, nil)
	assert.Error(t, err)

	_, err = c.Start(context.Background(), "bad", []string{"missing"}, nil)
	assert.Error(t, err)

	ready, _, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ready)
}

func TestChainRejectsMalformedPayload(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)

	err := c.Handle(context.Background(), Task{ID: "t", Type: TaskChain, Payload: json.RawMessage(`{"steps":["a"],"index":5}`)})
	assert.True(t, IsFatal(err))
}

func TestChainOutOfRangeIndexStillFinalizes(t *testing.T) {
	q, _, _ := setupQueue(t)
	c := NewChains(q)

	var results []ChainResult
	c.OnFinish("etl", func(_ context.Context, res ChainResult) { results = append(results, res) })

	err := c.Handle(context.Background(), Task{ID: "t", Type: TaskChain,
		Payload: json.RawMessage(`{"name":"etl","steps":["etl.run_extractors"],"index":3}`)})
	assert.True(t, IsFatal(err))
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "etl", results[0].Name)
}

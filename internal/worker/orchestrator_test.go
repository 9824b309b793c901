package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/service/ingest"
	"github.com/ignite/event-etl/internal/status"
)

type fakeExtractors struct {
	results map[string][]domain.RawRecord
	errs    map[string]error
	calls   []string
}

func (f *fakeExtractors) Names() []string {
	var names []string
	for n := range f.results {
		names = append(names, n)
	}
	for n := range f.errs {
		if _, ok := f.results[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (f *fakeExtractors) Run(_ context.Context, name string) ([]domain.RawRecord, error) {
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.results[name], nil
}

type fakeLoader struct {
	mu        sync.Mutex
	captured  []domain.RawRecord
	loaded    []domain.RawRecord
	loadErr   error
	replayErr error
	replays   int
}

func (f *fakeLoader) Capture(_ context.Context, raw domain.RawRecord) (domain.CapturedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, raw)
	return domain.CapturedRecord{ID: int64(len(f.captured)), Record: raw}, nil
}

func (f *fakeLoader) Load(_ context.Context, raw domain.RawRecord) (domain.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.LoadFailed, f.loadErr
	}
	f.loaded = append(f.loaded, raw)
	return domain.LoadInserted, nil
}

func (f *fakeLoader) Replay(context.Context, int) (ingest.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays++
	if f.replayErr != nil {
		return ingest.Summary{}, f.replayErr
	}
	return ingest.Summary{Inserted: len(f.captured)}, nil
}

type orchestratorFixture struct {
	orch   *Orchestrator
	queue  *Queue
	pool   *Pool
	status *status.Store
	ext    *fakeExtractors
	loader *fakeLoader
}

func setupOrchestrator(t *testing.T, parse DocumentParser, cfg Config) *orchestratorFixture {
	t.Helper()
	q, client, _ := setupQueue(t)
	st := status.New(client)
	ext := &fakeExtractors{results: map[string][]domain.RawRecord{}, errs: map[string]error{}}
	loader := &fakeLoader{}
	if parse == nil {
		parse = func(context.Context, string, string) ([]domain.RawRecord, error) { return nil, nil }
	}
	o := New(q, st, ext, loader, parse, cfg)
	p := NewPool(q, 1)
	o.Register(p)
	return &orchestratorFixture{orch: o, queue: q, pool: p, status: st, ext: ext, loader: loader}
}

func TestBatchRunsExtractorsThenLoads(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{})
	ctx := context.Background()
	f.ext.results["feed"] = []domain.RawRecord{
		domain.NewRawRecord("feed", map[string]any{"name": "A", "url": "https://a"}),
		domain.NewRawRecord("feed", map[string]any{"name": "B", "url": "https://b"}),
	}
	f.ext.results["places"] = []domain.RawRecord{
		domain.NewRawRecord("places", map[string]any{"name": "C", "url": "https://c"}),
	}

	_, err := f.orch.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, f.status.Get(ctx))

	for _, e := range drain(t, f.queue, f.pool) {
		assert.NoError(t, e)
	}
	assert.Equal(t, []string{"feed", "places"}, f.ext.calls)
	assert.Len(t, f.loader.captured, 3)
	assert.Equal(t, 1, f.loader.replays)
	assert.Equal(t, domain.StatusComplete, f.status.Get(ctx))
}

func TestSweepContinuesPastFailingExtractor(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{})
	f.ext.errs["broken"] = errors.New("timeout")
	f.ext.results["feed"] = []domain.RawRecord{domain.NewRawRecord("feed", map[string]any{"name": "A"})}

	out, err := f.orch.RunExtractors(context.Background(), nil)
	require.NoError(t, err)

	var res SweepResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, 1, res.Captured)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "broken", res.Sources[0].Name)
	assert.NotEmpty(t, res.Sources[0].Error)
}

func TestSweepSkipsConfiguredExtractors(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{SkipExtractors: []string{"places"}})
	f.ext.results["feed"] = nil
	f.ext.results["places"] = nil

	_, err := f.orch.RunExtractors(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed"}, f.ext.calls)
}

func TestFailedBatchStillCompletesStatus(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{})
	f.loader.replayErr = errors.New("db down")
	ctx := context.Background()

	_, err := f.orch.DispatchBatch(ctx)
	require.NoError(t, err)
	drain(t, f.queue, f.pool)

	assert.Equal(t, domain.StatusComplete, f.status.Get(ctx))
}

func TestStatusWaitsForEveryUnit(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{})
	ctx := context.Background()

	_, err := f.orch.DispatchBatch(ctx)
	require.NoError(t, err)
	_, err = f.orch.DispatchBatch(ctx)
	require.NoError(t, err)

	// Run only the first chain's first step.
	task, err := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, f.pool.dispatch(ctx, *task))
	assert.Equal(t, domain.StatusRunning, f.status.Get(ctx))

	drain(t, f.queue, f.pool)
	assert.Equal(t, domain.StatusComplete, f.status.Get(ctx))
}

func TestCorruptChainIndexStillCompletesStatus(t *testing.T) {
	f := setupOrchestrator(t, nil, Config{})
	ctx := context.Background()
	require.NoError(t, f.status.Begin(ctx))

	task := Task{ID: "t", Type: TaskChain,
		Payload: json.RawMessage(`{"name":"etl","steps":["etl.run_extractors"],"index":3}`)}
	err := f.pool.dispatch(ctx, task)
	assert.True(t, IsFatal(err))

	assert.Equal(t, domain.StatusComplete, f.status.Get(ctx))
}

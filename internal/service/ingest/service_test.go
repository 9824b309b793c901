package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/transform"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu         sync.Mutex
	nextID     int64
	raw        map[int64]domain.RawRecord
	processed  map[int64]bool
	events     map[string]domain.EventRow // keyed by url
	captureErr error
	failURLs   map[string]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		raw:       make(map[int64]domain.RawRecord),
		processed: make(map[int64]bool),
		events:    make(map[string]domain.EventRow),
		failURLs:  make(map[string]bool),
	}
}

func (m *mockRepo) CaptureRaw(_ context.Context, rec domain.RawRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captureErr != nil {
		return 0, m.captureErr
	}
	m.nextID++
	m.raw[m.nextID] = rec
	return m.nextID, nil
}

func (m *mockRepo) PendingRaw(_ context.Context, afterID int64, limit int) ([]domain.CapturedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.raw {
		if id > afterID && !m.processed[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.CapturedRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.CapturedRecord{ID: id, Record: m.raw[id]})
	}
	return out, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, rawID int64, ev domain.EventRow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failURLs[ev.URL] {
		return false, errors.New("connection reset")
	}
	m.processed[rawID] = true
	if _, exists := m.events[ev.URL]; exists {
		return false, nil
	}
	m.events[ev.URL] = ev
	return true, nil
}

func (m *mockRepo) MarkProcessed(_ context.Context, rawID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[rawID] = true
	return nil
}

func newTestLoader() (*Loader, *mockRepo) {
	repo := newMockRepo()
	return NewLoader(repo, transform.New(transform.Options{})), repo
}

func feedRecord(name, url string) domain.RawRecord {
	return domain.NewRawRecord("nashville_feed", map[string]any{"name": name, "url": url})
}

func TestLoadFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()

	res, err := l.Load(ctx, feedRecord("Original Name", "https://example.com/e/1"))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadInserted, res)

	res, err = l.Load(ctx, feedRecord("Changed Name", "https://example.com/e/1"))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadDuplicate, res)

	assert.Len(t, repo.events, 1)
	assert.Equal(t, "Original Name", repo.events["https://example.com/e/1"].Name)
	assert.Len(t, repo.raw, 2, "both records captured")
}

func TestLoadCapturesDiscardedRecords(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()

	res, err := l.Load(ctx, domain.NewRawRecord("nashville_feed", map[string]any{"name": "N/A", "url": "https://example.com/x"}))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadSkipped, res)

	res, err = l.Load(ctx, domain.NewRawRecord("nashville_feed", map[string]any{"description": "no name"}))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadSkipped, res)

	assert.Len(t, repo.raw, 2)
	assert.Empty(t, repo.events)
	assert.True(t, repo.processed[1])
	assert.True(t, repo.processed[2])
}

func TestLoadCaptureFailureIsTransient(t *testing.T) {
	l, repo := newTestLoader()
	repo.captureErr = errors.New("dial tcp: connection refused")

	res, err := l.Load(context.Background(), feedRecord("A", "https://example.com/a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, domain.LoadFailed, res)
	assert.Empty(t, repo.events)
}

func TestLoadUploadWithoutURL(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()

	rec := domain.NewRawRecord(domain.SourceUploadCSV, map[string]any{"venue_name": "Basement East"})
	res, err := l.Load(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.LoadInserted, res)

	// Re-uploading the same content is deduplicated.
	res, err = l.Load(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.LoadDuplicate, res)

	require.Len(t, repo.events, 1)
	for url, ev := range repo.events {
		assert.Contains(t, url, "uploaded://csv/")
		assert.Equal(t, "Untitled Event", ev.Name)
		assert.Equal(t, "Nashville", ev.VenueCity)
	}
}

func TestFailedInsertIsReplayed(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()
	repo.failURLs["https://example.com/b"] = true

	res, err := l.Load(ctx, feedRecord("A", "https://example.com/a"))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadInserted, res)

	res, err = l.Load(ctx, feedRecord("B", "https://example.com/b"))
	require.NoError(t, err)
	assert.Equal(t, domain.LoadFailed, res)
	assert.False(t, repo.processed[2])

	// Still failing: replay terminates and leaves the row pending.
	sum, err := l.Replay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Summary{Failed: 1}, sum)

	repo.failURLs = map[string]bool{}
	sum, err = l.Replay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Summary{Inserted: 1}, sum)
	assert.Len(t, repo.events, 2)
}

func TestReplayDrainsCapturedRecords(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()

	for _, rec := range []domain.RawRecord{
		feedRecord("A", "https://example.com/a"),
		feedRecord("B", "https://example.com/b"),
		feedRecord("A again", "https://example.com/a"),
		domain.NewRawRecord("nashville_feed", map[string]any{"url": "https://example.com/nameless"}),
	} {
		_, err := l.Capture(ctx, rec)
		require.NoError(t, err)
	}

	sum, err := l.Replay(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Summary{Inserted: 2, Duplicate: 1, Skipped: 1}, sum)
	assert.Equal(t, 4, sum.Total())

	sum, err = l.Replay(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, sum.Total(), "nothing left pending")
	assert.Len(t, repo.events, 2)
}

func TestConcurrentLoadsSameURL(t *testing.T) {
	ctx := context.Background()
	l, repo := newTestLoader()

	var wg sync.WaitGroup
	results := make(chan domain.LoadResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Load(ctx, feedRecord("Race", "https://example.com/race"))
			if err == nil {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	var sum Summary
	for r := range results {
		sum.Add(r)
	}
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 9, sum.Duplicate)
	assert.Len(t, repo.events, 1)
}

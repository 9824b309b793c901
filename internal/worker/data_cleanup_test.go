package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	batches []int64
	calls   int
	cutoff  time.Time
	err     error
}

func (f *fakePurger) PurgeProcessedRaw(_ context.Context, before time.Time, _ int) (int64, error) {
	f.cutoff = before
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func TestPurgeRawRunsUntilShortBatch(t *testing.T) {
	p := &fakePurger{batches: []int64{cleanupBatchSize, cleanupBatchSize, 12, 99}}
	dc := NewDataCleanupWorker(p, "")
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dc.now = func() time.Time { return now }

	assert.Equal(t, int64(2*cleanupBatchSize+12), dc.purgeRaw(context.Background()))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, now.Add(-DefaultRawRetention), p.cutoff)
}

func TestPurgeRawStopsOnError(t *testing.T) {
	dc := NewDataCleanupWorker(&fakePurger{err: errors.New("relation does not exist")}, "")
	assert.Zero(t, dc.purgeRaw(context.Background()))
}

func TestRemoveOrphansKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.csv")
	fresh := filepath.Join(dir, "fresh.csv")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	dc := NewDataCleanupWorker(nil, dir)
	assert.Equal(t, 1, dc.removeOrphans())
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestRemoveOrphansMissingDir(t *testing.T) {
	dc := NewDataCleanupWorker(nil, filepath.Join(t.TempDir(), "absent"))
	assert.Zero(t, dc.removeOrphans())
}

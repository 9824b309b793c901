package worker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/event-etl/internal/pkg/logger"
)

// Retention defaults for the cleanup cycle.
const (
	// DefaultCleanupInterval is how often the cleanup cycle runs.
	DefaultCleanupInterval = time.Hour

	// DefaultRawRetention is how long processed raw records are kept.
	DefaultRawRetention = 30 * 24 * time.Hour

	// DefaultOrphanAge is the age after which a file still sitting in the
	// upload dir is treated as abandoned. It is well past the longest
	// retry schedule of a document task.
	DefaultOrphanAge = 24 * time.Hour

	// cleanupBatchSize limits each DELETE to avoid long locks on raw_data.
	cleanupBatchSize = 10000
)

// RawPurger deletes processed raw records captured before a cutoff.
type RawPurger interface {
	PurgeProcessedRaw(ctx context.Context, before time.Time, limit int) (int64, error)
}

// DataCleanupWorker removes processed raw records past retention and
// upload files abandoned by a worker that died mid-task.
type DataCleanupWorker struct {
	purger       RawPurger
	uploadDir    string
	interval     time.Duration
	rawRetention time.Duration
	orphanAge    time.Duration
	now          func() time.Time
}

// NewDataCleanupWorker creates a cleanup worker with default settings.
// A nil purger skips the raw record purge.
func NewDataCleanupWorker(purger RawPurger, uploadDir string) *DataCleanupWorker {
	return &DataCleanupWorker{
		purger:       purger,
		uploadDir:    uploadDir,
		interval:     DefaultCleanupInterval,
		rawRetention: DefaultRawRetention,
		orphanAge:    DefaultOrphanAge,
		now:          time.Now,
	}
}

// Start runs a cycle now and then every interval until ctx is cancelled.
func (dc *DataCleanupWorker) Start(ctx context.Context) {
	logger.Info("[DataCleanup] starting", "interval", dc.interval, "raw_retention", dc.rawRetention)

	dc.cleanup(ctx)

	ticker := time.NewTicker(dc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("[DataCleanup] stopping")
			return
		case <-ticker.C:
			dc.cleanup(ctx)
		}
	}
}

func (dc *DataCleanupWorker) cleanup(ctx context.Context) {
	start := time.Now()
	purged := dc.purgeRaw(ctx)
	removed := dc.removeOrphans()
	logger.Info("[DataCleanup] cycle completed",
		"raw_purged", purged, "orphans_removed", removed, "duration", time.Since(start).Round(time.Millisecond))
}

// purgeRaw deletes in batches until a batch comes back short. A failure
// ends the cycle's purge; the next cycle resumes where it stopped.
func (dc *DataCleanupWorker) purgeRaw(ctx context.Context) int64 {
	if dc.purger == nil {
		return 0
	}
	cutoff := dc.now().Add(-dc.rawRetention)
	var total int64
	for ctx.Err() == nil {
		n, err := dc.purger.PurgeProcessedRaw(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			logger.Warn("[DataCleanup] raw purge failed", "error", err)
			break
		}
		total += n
		if n < cleanupBatchSize {
			break
		}
	}
	return total
}

func (dc *DataCleanupWorker) removeOrphans() int {
	if dc.uploadDir == "" {
		return 0
	}
	entries, err := os.ReadDir(dc.uploadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("[DataCleanup] cannot read upload dir", "error", err)
		}
		return 0
	}
	cutoff := dc.now().Add(-dc.orphanAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dc.uploadDir, e.Name())); err != nil {
			logger.Warn("[DataCleanup] could not remove orphaned upload", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}

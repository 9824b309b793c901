package ingest

import (
	"context"
	"fmt"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// DefaultReplayBatch is the number of pending raw rows fetched per page
// during replay.
const DefaultReplayBatch = 500

// Transformer maps a raw record to its canonical form; false discards it.
type Transformer interface {
	Transform(raw domain.RawRecord) (*domain.CanonicalEvent, bool)
}

// Loader captures, transforms, cleans, and stores records. It is safe for
// concurrent use.
type Loader struct {
	repo        Repository
	transformer Transformer
}

// NewLoader creates a loader backed by the given repository.
func NewLoader(repo Repository, transformer Transformer) *Loader {
	return &Loader{repo: repo, transformer: transformer}
}

// Capture persists the record verbatim. A failure here is an
// ErrStoreUnavailable and the caller should retry its unit of work.
func (l *Loader) Capture(ctx context.Context, raw domain.RawRecord) (domain.CapturedRecord, error) {
	id, err := l.repo.CaptureRaw(ctx, raw)
	if err != nil {
		return domain.CapturedRecord{}, fmt.Errorf("%w: capture raw record: %w", ErrStoreUnavailable, err)
	}
	return domain.CapturedRecord{ID: id, Record: raw}, nil
}

// Load captures raw and then applies it. Only a capture failure is
// returned as an error; every other outcome is a LoadResult.
func (l *Loader) Load(ctx context.Context, raw domain.RawRecord) (domain.LoadResult, error) {
	captured, err := l.Capture(ctx, raw)
	if err != nil {
		return domain.LoadFailed, err
	}
	return l.Apply(ctx, captured), nil
}

// Apply transforms, cleans, and inserts an already captured record.
func (l *Loader) Apply(ctx context.Context, captured domain.CapturedRecord) domain.LoadResult {
	result := l.apply(ctx, captured)
	metrics.IncreaseRecordsMetric(sourceOf(captured.Record), string(result))
	return result
}

func (l *Loader) apply(ctx context.Context, captured domain.CapturedRecord) domain.LoadResult {
	ev, ok := l.transformer.Transform(captured.Record)
	if !ok {
		l.markProcessed(ctx, captured.ID)
		return domain.LoadSkipped
	}

	row := Clean(ev)
	if row.Name == "" || row.URL == "" {
		logger.Info("[Loader] skipping record without name or url", "raw_id", captured.ID, "source", row.Source)
		l.markProcessed(ctx, captured.ID)
		return domain.LoadSkipped
	}

	inserted, err := l.repo.InsertEvent(ctx, captured.ID, row)
	if err != nil {
		logger.Error("[Loader] insert failed", "raw_id", captured.ID, "url", row.URL, "error", err)
		return domain.LoadFailed
	}
	if !inserted {
		return domain.LoadDuplicate
	}
	return domain.LoadInserted
}

func (l *Loader) markProcessed(ctx context.Context, rawID int64) {
	if err := l.repo.MarkProcessed(ctx, rawID); err != nil {
		logger.Warn("[Loader] failed to mark raw row processed", "raw_id", rawID, "error", err)
	}
}

// Replay drains every captured record that was never processed, in id
// order. Records that fail again stay pending for the next replay.
func (l *Loader) Replay(ctx context.Context, batchSize int) (Summary, error) {
	if batchSize <= 0 {
		batchSize = DefaultReplayBatch
	}

	var sum Summary
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		batch, err := l.repo.PendingRaw(ctx, after, batchSize)
		if err != nil {
			return sum, fmt.Errorf("%w: list pending raw records: %w", ErrStoreUnavailable, err)
		}
		for _, rec := range batch {
			sum.Add(l.Apply(ctx, rec))
			after = rec.ID
		}
		if len(batch) < batchSize {
			return sum, nil
		}
	}
}

// Summary counts load results.
type Summary struct {
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Add counts one result.
func (s *Summary) Add(r domain.LoadResult) {
	switch r {
	case domain.LoadInserted:
		s.Inserted++
	case domain.LoadDuplicate:
		s.Duplicate++
	case domain.LoadSkipped:
		s.Skipped++
	case domain.LoadFailed:
		s.Failed++
	}
}

// Total is the number of results counted.
func (s Summary) Total() int {
	return s.Inserted + s.Duplicate + s.Skipped + s.Failed
}

func sourceOf(raw domain.RawRecord) string {
	if s := raw.Get(domain.FieldSource); s != "" {
		return s
	}
	if raw.Source != "" {
		return raw.Source
	}
	return "unknown"
}

package ingest

import (
	"context"

	"github.com/ignite/event-etl/internal/domain"
)

// Repository defines the data access contract for raw capture and event
// loading.
type Repository interface {
	// CaptureRaw stores the record verbatim and returns its id.
	CaptureRaw(ctx context.Context, rec domain.RawRecord) (int64, error)

	// PendingRaw returns up to limit captured records with an id greater
	// than afterID that were never marked processed, in id order.
	PendingRaw(ctx context.Context, afterID int64, limit int) ([]domain.CapturedRecord, error)

	// InsertEvent inserts the event unless its url already exists and marks
	// the raw row processed, in one transaction. It reports whether a row
	// was inserted.
	InsertEvent(ctx context.Context, rawID int64, ev domain.EventRow) (bool, error)

	// MarkProcessed flags a raw row whose record was discarded.
	MarkProcessed(ctx context.Context, rawID int64) error
}

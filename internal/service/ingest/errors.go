package ingest

import "errors"

// Sentinel errors for the ingest service layer.
var (
	// ErrStoreUnavailable wraps failures to reach the durable store. It is
	// transient: callers retry the unit of work.
	ErrStoreUnavailable = errors.New("durable store unavailable")
)

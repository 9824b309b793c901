package events

import "errors"

// Sentinel errors for the events service layer.
var (
	ErrTableMissing = errors.New("events table does not exist")
)

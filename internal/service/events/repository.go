package events

import (
	"context"

	"github.com/ignite/event-etl/internal/domain"
)

// Repository defines the data access contract for querying stored events.
type Repository interface {
	// TableExists reports whether the events table has been created.
	TableExists(ctx context.Context) (bool, error)

	// Facets returns the distinct non-empty sources and categories, sorted.
	Facets(ctx context.Context) (sources, categories []string, err error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// List returns one page of matching events. With a search term the
	// rows are ordered by relevance, otherwise by date (nulls last) then
	// name.
	List(ctx context.Context, f Filter, limit, offset int) ([]domain.EventRow, error)

	// Clear removes every event and raw record.
	Clear(ctx context.Context) error
}

// Filter holds the conjunctive query filters. Empty fields do not filter.
type Filter struct {
	Source   string
	Category string
	Search   string
}

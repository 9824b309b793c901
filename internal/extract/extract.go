// Package extract defines extraction sources and the registry the batch
// sweep iterates. An extractor fetches records from one external source
// and returns them raw; normalization happens later in the pipeline.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/event-etl/internal/domain"
)

// ErrUnknownExtractor is returned for a name that was never registered.
var ErrUnknownExtractor = errors.New("unknown extractor")

// Extractor pulls raw records from one source.
type Extractor interface {
	Name() string
	Extract(ctx context.Context) ([]domain.RawRecord, error)
}

// Registry holds extractors by name. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces an extractor.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Name()] = e
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.extractors))
	for n := range r.extractors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named extractor.
func (r *Registry) Get(name string) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtractor, name)
	}
	return e, nil
}

// Run executes the named extractor. A panicking extractor is reported as
// an error.
func (r *Registry) Run(ctx context.Context, name string) (records []domain.RawRecord, err error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			records = nil
			err = fmt.Errorf("extractor %s panicked: %v", name, p)
		}
	}()
	return e.Extract(ctx)
}

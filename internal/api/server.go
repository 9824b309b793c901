// Package api is the HTTP surface of the pipeline: the event query, the
// processing flag, document upload, manual batch launch, bulk clear and
// the HTML dashboard.
package api

import (
	"context"
	"fmt"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/service/events"
)

// EventQuerier serves event pages and the bulk clear.
type EventQuerier interface {
	Query(ctx context.Context, q events.Query) events.Result
	Clear(ctx context.Context) error
}

// StatusReader reads the processing flag.
type StatusReader interface {
	Get(ctx context.Context) domain.ProcessingStatus
	Consume(ctx context.Context) domain.ProcessingStatus
}

// Dispatcher hands work to the background workers.
type Dispatcher interface {
	DispatchBatch(ctx context.Context) (string, error)
	DispatchDocument(ctx context.Context, path, fileType string) (string, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Server holds the handlers' dependencies.
type Server struct {
	events     EventQuerier
	status     StatusReader
	dispatcher Dispatcher
	health     *HealthChecker
	metrics    *metrics.Middleware
	dashboard  *Dashboard
	cfg        Config
}

// NewServer wires the HTTP layer. health and mw may be nil.
func NewServer(ev EventQuerier, st StatusReader, d Dispatcher, health *HealthChecker, mw *metrics.Middleware, cfg Config) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	dash, err := NewDashboard()
	if err != nil {
		return nil, fmt.Errorf("dashboard template: %w", err)
	}
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	return &Server{
		events:     ev,
		status:     st,
		dispatcher: d,
		health:     health,
		metrics:    mw,
		dashboard:  dash,
		cfg:        cfg,
	}, nil
}

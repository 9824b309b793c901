package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// DefaultPageSize is the number of events per page.
const DefaultPageSize = 25

// Query is a request for one page of events.
type Query struct {
	Page     int    `json:"page"`
	Source   string `json:"source,omitempty"`
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
}

// Normalize clamps the page to at least 1 and trims the filters.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	q.Source = strings.TrimSpace(q.Source)
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (q Query) filter() Filter {
	return Filter{Source: q.Source, Category: q.Category, Search: q.Search}
}

// Result is one page of events plus the facets and paging totals.
type Result struct {
	Events     []domain.EventRow `json:"events"`
	Sources    []string          `json:"sources"`
	Categories []string          `json:"categories"`
	TotalPages int               `json:"total_pages"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
}

func emptyResult(page int) Result {
	return Result{
		Events:     []domain.EventRow{},
		Sources:    []string{},
		Categories: []string{},
		Page:       page,
	}
}

// Service implements event queries. It is safe for concurrent use.
type Service struct {
	repo     Repository
	pageSize int
}

// NewService creates a query service. A pageSize of zero or less uses
// DefaultPageSize.
func NewService(repo Repository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{repo: repo, pageSize: pageSize}
}

// PageSize returns the configured page size.
func (s *Service) PageSize() int { return s.pageSize }

// Query returns one page of events. Store failures are logged and yield an
// empty result rather than an error.
func (s *Service) Query(ctx context.Context, q Query) Result {
	q = q.Normalize()
	res, err := s.query(ctx, q)
	if err != nil {
		if errors.Is(err, ErrTableMissing) {
			logger.Warn("[Events] events table missing, returning empty result")
		} else {
			logger.Error("[Events] query failed, returning empty result", "error", err)
		}
		return emptyResult(q.Page)
	}
	return res
}

func (s *Service) query(ctx context.Context, q Query) (Result, error) {
	exists, err := s.repo.TableExists(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check events table: %w", err)
	}
	if !exists {
		return Result{}, ErrTableMissing
	}

	res := emptyResult(q.Page)

	sources, categories, err := s.repo.Facets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load facets: %w", err)
	}
	if sources != nil {
		res.Sources = sources
	}
	if categories != nil {
		res.Categories = categories
	}

	f := q.filter()
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("count events: %w", err)
	}
	res.TotalCount = total
	res.TotalPages = (total + s.pageSize - 1) / s.pageSize

	// Pages past the end are empty, not an error.
	if q.Page > res.TotalPages {
		return res, nil
	}

	rows, err := s.repo.List(ctx, f, s.pageSize, (q.Page-1)*s.pageSize)
	if err != nil {
		return Result{}, fmt.Errorf("list events: %w", err)
	}
	if rows != nil {
		res.Events = rows
	}
	return res, nil
}

// Clear removes all stored events and raw records.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	logger.Info("[Events] cleared all events and raw records")
	return nil
}

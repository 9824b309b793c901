package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/domain"
)

// mockRepo is an in-memory repository for testing. Search matches on a
// case-insensitive substring of name or description.
type mockRepo struct {
	mu      sync.Mutex
	events  []domain.EventRow
	missing bool
	err     error
	listed  int
}

func (m *mockRepo) TableExists(context.Context) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return !m.missing, nil
}

func (m *mockRepo) Facets(context.Context) ([]string, []string, error) {
	srcSet, catSet := map[string]bool{}, map[string]bool{}
	for _, e := range m.events {
		if e.Source != "" {
			srcSet[e.Source] = true
		}
		if e.Category != "" {
			catSet[e.Category] = true
		}
	}
	return sortedKeys(srcSet), sortedKeys(catSet), nil
}

func (m *mockRepo) match(f Filter) []domain.EventRow {
	var out []domain.EventRow
	for _, e := range m.events {
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Name+" "+e.Description), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *mockRepo) Count(_ context.Context, f Filter) (int, error) {
	return len(m.match(f)), nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]domain.EventRow, error) {
	m.mu.Lock()
	m.listed++
	m.mu.Unlock()
	rows := m.match(f)
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (m *mockRepo) Clear(context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.events = nil
	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func seed(n int) *mockRepo {
	repo := &mockRepo{}
	for i := 0; i < n; i++ {
		src, cat := "feed", "Music"
		if i%3 == 0 {
			src, cat = "places", "Food & Drink"
		}
		repo.events = append(repo.events, domain.EventRow{
			ID:       int64(i + 1),
			Name:     fmt.Sprintf("Event %02d", i),
			URL:      fmt.Sprintf("https://example.com/%d", i),
			Source:   src,
			Category: cat,
		})
	}
	return repo
}

func TestQueryPagination(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seed(57), 0)

	res := svc.Query(ctx, Query{Page: 1})
	assert.Equal(t, 57, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Events, 25)

	res = svc.Query(ctx, Query{Page: 3})
	assert.Len(t, res.Events, 7)

	res = svc.Query(ctx, Query{Page: 4})
	assert.Empty(t, res.Events)
	assert.NotNil(t, res.Events)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 4, res.Page)
}

func TestQueryNormalizesPage(t *testing.T) {
	svc := NewService(seed(5), 0)
	res := svc.Query(context.Background(), Query{Page: -2})
	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Events, 5)
}

func TestQueryFacetsIgnoreFilters(t *testing.T) {
	svc := NewService(seed(10), 0)

	res := svc.Query(context.Background(), Query{Source: "places", Category: "Food & Drink"})
	assert.Equal(t, []string{"feed", "places"}, res.Sources)
	assert.Equal(t, []string{"Food & Drink", "Music"}, res.Categories)
	assert.Equal(t, 4, res.TotalCount)
	for _, e := range res.Events {
		assert.Equal(t, "places", e.Source)
	}
}

func TestQueryFiltersAreConjunctive(t *testing.T) {
	svc := NewService(seed(10), 0)
	res := svc.Query(context.Background(), Query{Source: "places", Category: "Music"})
	assert.Zero(t, res.TotalCount)
	assert.Empty(t, res.Events)
}

func TestQueryDegradesToEmpty(t *testing.T) {
	ctx := context.Background()

	missing := NewService(&mockRepo{missing: true}, 0)
	res := missing.Query(ctx, Query{Page: 2})
	assert.Equal(t, emptyResult(2), res)

	down := NewService(&mockRepo{err: errors.New("connection refused")}, 0)
	res = down.Query(ctx, Query{})
	assert.Equal(t, emptyResult(1), res)
}

func TestQueryPastLastPageSkipsList(t *testing.T) {
	repo := seed(3)
	svc := NewService(repo, 2)
	res := svc.Query(context.Background(), Query{Page: 5})
	assert.Empty(t, res.Events)
	assert.Zero(t, repo.listed)
}

func TestClear(t *testing.T) {
	repo := seed(3)
	svc := NewService(repo, 0)
	require.NoError(t, svc.Clear(context.Background()))
	assert.Zero(t, svc.Query(context.Background(), Query{}).TotalCount)

	repo.err = errors.New("boom")
	assert.Error(t, svc.Clear(context.Background()))
}

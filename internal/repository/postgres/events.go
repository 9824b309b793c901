package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/service/events"
)

const eventColumns = `id, name, url, event_date, season, venue_name, venue_address, venue_city,
	description, category, genre, latitude, longitude, source, extra, created_at`

// EventRepo implements events.Repository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event query repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT to_regclass('public.events') IS NOT NULL`,
	).Scan(&exists)
	return exists, err
}

func (r *EventRepo) Facets(ctx context.Context) ([]string, []string, error) {
	sources, err := r.distinct(ctx, `SELECT DISTINCT source FROM events WHERE source IS NOT NULL AND source <> '' ORDER BY source`)
	if err != nil {
		return nil, nil, fmt.Errorf("distinct sources: %w", err)
	}
	categories, err := r.distinct(ctx, `SELECT DISTINCT category FROM events WHERE category IS NOT NULL AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, nil, fmt.Errorf("distinct categories: %w", err)
	}
	return sources, categories, nil
}

func (r *EventRepo) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// where builds the conjunctive filter clause. Placeholders start at $1.
func where(f events.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, f.Search)
		conds = append(conds, fmt.Sprintf("search_vector @@ plainto_tsquery('english', $%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *EventRepo) Count(ctx context.Context, f events.Filter) (int, error) {
	clause, args := where(f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (r *EventRepo) List(ctx context.Context, f events.Filter, limit, offset int) ([]domain.EventRow, error) {
	clause, args := where(f)

	order := " ORDER BY event_date ASC NULLS LAST, name ASC"
	if f.Search != "" {
		// The search term is the last filter argument.
		order = fmt.Sprintf(" ORDER BY ts_rank(search_vector, plainto_tsquery('english', $%d)) DESC, event_date ASC NULLS LAST, name ASC", len(args))
	}
	args = append(args, limit, offset)
	query := `SELECT ` + eventColumns + ` FROM events` + clause + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.EventRow
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (domain.EventRow, error) {
	var (
		ev                                                 domain.EventRow
		date, season, venue, address, city, desc, cat, gen sql.NullString
		source                                             sql.NullString
		lat, lng                                           sql.NullFloat64
		extra                                              []byte
	)
	if err := rows.Scan(&ev.ID, &ev.Name, &ev.URL, &date, &season, &venue, &address, &city,
		&desc, &cat, &gen, &lat, &lng, &source, &extra, &ev.CreatedAt); err != nil {
		return ev, err
	}
	ev.EventDate, ev.Season = date.String, season.String
	ev.VenueName, ev.VenueAddress, ev.VenueCity = venue.String, address.String, city.String
	ev.Description, ev.Category, ev.Genre = desc.String, cat.String, gen.String
	ev.Source = source.String
	if lat.Valid {
		ev.Latitude = &lat.Float64
	}
	if lng.Valid {
		ev.Longitude = &lng.Float64
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &ev.Extra); err != nil {
			return ev, fmt.Errorf("decode extra: %w", err)
		}
	}
	return ev, nil
}

// Clear empties both tables and resets their id sequences.
func (r *EventRepo) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE events, raw_data RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return tx.Commit()
}

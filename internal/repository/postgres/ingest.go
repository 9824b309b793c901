package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/event-etl/internal/domain"
)

// IngestRepo implements ingest.Repository against PostgreSQL.
type IngestRepo struct{ db *sql.DB }

// NewIngestRepo creates a Postgres-backed ingest repository.
func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

func (r *IngestRepo) CaptureRaw(ctx context.Context, rec domain.RawRecord) (int64, error) {
	payload, err := rec.MarshalPayload()
	if err != nil {
		return 0, fmt.Errorf("encode raw record: %w", err)
	}
	var id int64
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO raw_data (source, raw_json) VALUES ($1, $2) RETURNING id`,
		rec.Source, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert raw record: %w", err)
	}
	return id, nil
}

func (r *IngestRepo) PendingRaw(ctx context.Context, afterID int64, limit int) ([]domain.CapturedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, raw_json, created_at
		FROM raw_data
		WHERE processed_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending raw records: %w", err)
	}
	defer rows.Close()

	var out []domain.CapturedRecord
	for rows.Next() {
		var (
			c       domain.CapturedRecord
			payload []byte
		)
		if err := rows.Scan(&c.ID, &c.Record.Source, &payload, &c.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		fields, err := decodeFields(payload)
		if err != nil {
			return nil, fmt.Errorf("decode raw record %d: %w", c.ID, err)
		}
		c.Record.Fields = fields
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *IngestRepo) InsertEvent(ctx context.Context, rawID int64, ev domain.EventRow) (bool, error) {
	extra, err := encodeExtra(ev.Extra)
	if err != nil {
		return false, fmt.Errorf("encode extra fields: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (
			name, url, event_date, season, venue_name, venue_address, venue_city,
			description, category, genre, latitude, longitude, source, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (url) DO NOTHING
	`,
		ev.Name, ev.URL, nullString(ev.EventDate), nullString(ev.Season),
		nullString(ev.VenueName), nullString(ev.VenueAddress), nullString(ev.VenueCity),
		nullString(ev.Description), nullString(ev.Category), nullString(ev.Genre),
		nullFloat(ev.Latitude), nullFloat(ev.Longitude), nullString(ev.Source), extra,
	)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert event rows affected: %w", err)
	}

	if rawID > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE raw_data SET processed_at = NOW() WHERE id = $1`, rawID,
		); err != nil {
			return false, fmt.Errorf("mark raw record processed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit event: %w", err)
	}
	return n > 0, nil
}

func (r *IngestRepo) MarkProcessed(ctx context.Context, rawID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE raw_data SET processed_at = NOW() WHERE id = $1`, rawID,
	)
	if err != nil {
		return fmt.Errorf("mark raw record processed: %w", err)
	}
	return nil
}

// PurgeProcessedRaw deletes up to limit raw records processed before the
// cutoff. Pending records are never purged.
func (r *IngestRepo) PurgeProcessedRaw(ctx context.Context, before time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM raw_data
		WHERE id IN (
			SELECT id FROM raw_data
			WHERE processed_at IS NOT NULL AND processed_at < $1
			ORDER BY id
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("purge processed raw records: %w", err)
	}
	return res.RowsAffected()
}

// decodeFields keeps numbers as json.Number so captured values round-trip
// without float rounding.
func decodeFields(payload []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(payload) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func encodeExtra(extra map[string]any) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

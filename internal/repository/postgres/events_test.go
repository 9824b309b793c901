package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/service/events"
)

var eventColumnNames = []string{
	"id", "name", "url", "event_date", "season", "venue_name", "venue_address", "venue_city",
	"description", "category", "genre", "latitude", "longitude", "source", "extra", "created_at",
}

func TestWhere(t *testing.T) {
	clause, args := where(events.Filter{})
	assert.Empty(t, clause)
	assert.Empty(t, args)

	clause, args = where(events.Filter{Source: "feed", Category: "Music", Search: "jazz"})
	assert.Equal(t, " WHERE source = $1 AND category = $2 AND search_vector @@ plainto_tsquery('english', $3)", clause)
	assert.Equal(t, []any{"feed", "Music", "jazz"}, args)
}

func TestEventRepo_TableExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("to_regclass").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	ok, err := NewEventRepo(db).TableExists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventRepo_Facets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT DISTINCT source").WillReturnRows(sqlmock.NewRows([]string{"source"}).AddRow("feed").AddRow("places"))
	mock.ExpectQuery("SELECT DISTINCT category").WillReturnRows(sqlmock.NewRows([]string{"category"}))

	sources, categories, err := NewEventRepo(db).Facets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"feed", "places"}, sources)
	assert.Equal(t, []string{}, categories)
}

func TestEventRepo_ListDefaultOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM events WHERE category = \$1 ORDER BY event_date ASC NULLS LAST, name ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("Music", 25, 50).
		WillReturnRows(sqlmock.NewRows(eventColumnNames).
			AddRow(int64(1), "Show", "https://example.com/1", "2025-03-14T00:00:00Z", nil, "Ryman Auditorium", nil, "Nashville",
				nil, "Music", "Country", 36.16, nil, "feed", []byte(`{"price":"20"}`), now))

	rows, err := NewEventRepo(db).List(context.Background(), events.Filter{Category: "Music"}, 25, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ev := rows[0]
	assert.Equal(t, "Ryman Auditorium", ev.VenueName)
	assert.Empty(t, ev.Season)
	require.NotNil(t, ev.Latitude)
	assert.Equal(t, 36.16, *ev.Latitude)
	assert.Nil(t, ev.Longitude)
	assert.Equal(t, map[string]any{"price": "20"}, ev.Extra)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ListSearchRanksByRelevance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`ORDER BY ts_rank\(search_vector, plainto_tsquery\('english', \$1\)\) DESC`).
		WithArgs("bluegrass", 25, 0).
		WillReturnRows(sqlmock.NewRows(eventColumnNames))

	rows, err := NewEventRepo(db).List(context.Background(), events.Filter{Search: "bluegrass"}, 25, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_Clear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE events, raw_data RESTART IDENTITY").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, NewEventRepo(db).Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

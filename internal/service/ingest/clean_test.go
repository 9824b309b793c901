package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-etl/internal/domain"
)

func TestCleanText(t *testing.T) {
	row := Clean(&domain.CanonicalEvent{
		Name:        "  Jazz Night ",
		URL:         "https://example.com/j",
		Description: "N/A",
		VenueName:   "none",
		VenueCity:   "NULL",
		Season:      "  ",
		Category:    "Music",
	})

	assert.Equal(t, "Jazz Night", row.Name)
	assert.Empty(t, row.Description)
	assert.Empty(t, row.VenueName)
	assert.Empty(t, row.VenueCity)
	assert.Empty(t, row.Season)
	assert.Equal(t, "Music", row.Category)
}

func TestCleanCoordinates(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"string", "36.16", ptr(36.16)},
		{"padded string", " -86.78 ", ptr(-86.78)},
		{"number", 36.16, ptr(36.16)},
		{"integer", 36, ptr(36)},
		{"nil", nil, nil},
		{"sentinel", "N/A", nil},
		{"garbage", "north-ish", nil},
		{"out of range", "95", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Clean(&domain.CanonicalEvent{Latitude: tt.in})
			if tt.want == nil {
				assert.Nil(t, row.Latitude)
				return
			}
			require.NotNil(t, row.Latitude)
			assert.InDelta(t, *tt.want, *row.Latitude, 1e-9)
		})
	}

	row := Clean(&domain.CanonicalEvent{Longitude: "-181"})
	assert.Nil(t, row.Longitude)
	row = Clean(&domain.CanonicalEvent{Longitude: "-179.5"})
	require.NotNil(t, row.Longitude)
	assert.Equal(t, -179.5, *row.Longitude)
}

func ptr(f float64) *float64 { return &f }

package domain

import "time"

// Canonical field names shared by raw records, the transformer, and storage.
const (
	FieldName         = "name"
	FieldURL          = "url"
	FieldEventDate    = "event_date"
	FieldSeason       = "season"
	FieldVenueName    = "venue_name"
	FieldVenueAddress = "venue_address"
	FieldVenueCity    = "venue_city"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldGenre        = "genre"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldSource       = "source"
)

// CanonicalFields lists every key the transformer maps onto a typed field.
var CanonicalFields = []string{
	FieldName, FieldURL, FieldEventDate, FieldSeason, FieldVenueName,
	FieldVenueAddress, FieldVenueCity, FieldDescription, FieldCategory,
	FieldGenre, FieldLatitude, FieldLongitude, FieldSource,
}

// CanonicalEvent is the transformer's output. Coordinates keep the value the
// source produced (string, number, or nil) until the loader cleans them.
type CanonicalEvent struct {
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	EventDate    string         `json:"event_date"`
	Season       string         `json:"season"`
	VenueName    string         `json:"venue_name"`
	VenueAddress string         `json:"venue_address"`
	VenueCity    string         `json:"venue_city"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Genre        string         `json:"genre"`
	Latitude     any            `json:"latitude"`
	Longitude    any            `json:"longitude"`
	Source       string         `json:"source"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// EventRow is a cleaned event as stored in the events table. Empty strings
// are written as NULL.
type EventRow struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	EventDate    string         `json:"event_date,omitempty"`
	Season       string         `json:"season,omitempty"`
	VenueName    string         `json:"venue_name,omitempty"`
	VenueAddress string         `json:"venue_address,omitempty"`
	VenueCity    string         `json:"venue_city,omitempty"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	Genre        string         `json:"genre,omitempty"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	Source       string         `json:"source,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// LoadResult is the outcome of loading one record. Duplicates and skips are
// expected outcomes, not errors.
type LoadResult string

const (
	LoadInserted  LoadResult = "inserted"
	LoadDuplicate LoadResult = "duplicate"
	LoadSkipped   LoadResult = "skipped"
	LoadFailed    LoadResult = "failed"
)

// ProcessingStatus is the process-wide signal telling readers whether
// extraction work is in flight.
type ProcessingStatus string

const (
	StatusIdle     ProcessingStatus = "idle"
	StatusRunning  ProcessingStatus = "running"
	StatusComplete ProcessingStatus = "complete"
)

// ParseStatus maps a stored value to a status. Anything unrecognized,
// including an absent value, is idle.
func ParseStatus(s string) ProcessingStatus {
	switch ProcessingStatus(s) {
	case StatusRunning:
		return StatusRunning
	case StatusComplete:
		return StatusComplete
	default:
		return StatusIdle
	}
}

package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
)

// Clean narrows a canonical event into a storable row. Free text is
// trimmed and sentinel values become empty (NULL). Coordinates are parsed
// from strings or numbers; anything unparseable or outside the valid
// range becomes nil.
func Clean(ev *domain.CanonicalEvent) domain.EventRow {
	return domain.EventRow{
		Name:         cleanText(ev.Name),
		URL:          cleanText(ev.URL),
		EventDate:    cleanText(ev.EventDate),
		Season:       cleanText(ev.Season),
		VenueName:    cleanText(ev.VenueName),
		VenueAddress: cleanText(ev.VenueAddress),
		VenueCity:    cleanText(ev.VenueCity),
		Description:  cleanText(ev.Description),
		Category:     cleanText(ev.Category),
		Genre:        cleanText(ev.Genre),
		Latitude:     cleanCoordinate(ev.Latitude, 90),
		Longitude:    cleanCoordinate(ev.Longitude, 180),
		Source:       cleanText(ev.Source),
		Extra:        ev.Extra,
	}
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if isSentinel(s) {
		return ""
	}
	return s
}

func isSentinel(s string) bool {
	return domain.IsNullText(s)
}

func cleanCoordinate(v any, limit float64) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		if isSentinel(t) {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(domain.Text(t)), 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < -limit || f > limit {
		return nil
	}
	return &f
}

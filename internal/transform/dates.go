package transform

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"January 2, 2006 at 3:04 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 at 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// zoneLocations resolves the US zone abbreviations feeds use. Parsing
// alone would read an unknown abbreviation as UTC.
var zoneLocations = map[string]string{
	"EST": "America/New_York", "EDT": "America/New_York",
	"CST": "America/Chicago", "CDT": "America/Chicago",
	"MST": "America/Denver", "MDT": "America/Denver",
	"PST": "America/Los_Angeles", "PDT": "America/Los_Angeles",
	"AKST": "America/Anchorage", "AKDT": "America/Anchorage",
	"HST": "Pacific/Honolulu",
}

var (
	ordinalSuffix = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// StandardizeDate reparses a source date into RFC 3339 in UTC so stored
// dates sort chronologically as text. Dates without a zone are taken as
// UTC; an unrecognized zone abbreviation is an error.
func StandardizeDate(value string) (string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	s = spaceRun.ReplaceAllString(s, " ")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "a.m.", "AM")
	s = strings.ReplaceAll(s, "p.m.", "PM")

	candidates := []string{s}
	// Lower-case meridiem ("7:30 pm") is common in listings.
	if upper := strings.NewReplacer(" am", " AM", " pm", " PM").Replace(s); upper != s {
		candidates = append(candidates, upper)
	}
	for _, c := range candidates {
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, c)
			if err != nil {
				continue
			}
			t, err = resolveZone(layout, c, t)
			if err != nil {
				return "", fmt.Errorf("date %q: %w", value, err)
			}
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("unrecognized date format %q", value)
}

// resolveZone reparses t in the real location behind a zone abbreviation.
// Numeric offsets and UTC are already exact.
func resolveZone(layout, s string, t time.Time) (time.Time, error) {
	name, offset := t.Zone()
	if name == "" || name == "UTC" || name == "GMT" || name == "Z" {
		return t, nil
	}
	if locName, ok := zoneLocations[name]; ok {
		loc, err := time.LoadLocation(locName)
		if err != nil {
			return time.Time{}, err
		}
		return time.ParseInLocation(layout, s, loc)
	}
	if offset == 0 {
		return time.Time{}, fmt.Errorf("unknown zone abbreviation %s", name)
	}
	return t, nil
}

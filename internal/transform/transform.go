// Package transform maps raw records onto the canonical event schema.
//
// The policy branches on the record's source. Records from user uploads
// are authoritative and pass through almost untouched; records from
// automated extraction get their dates, venue names, and categories
// cleaned up. Each cleanup step is isolated: a step that fails leaves its
// field as it was and the record still moves on.
package transform

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

const (
	// PlaceholderName is used for uploaded records that have no name.
	PlaceholderName = "Untitled Event"

	// DefaultCity is the venue_city backstop for uploads when none is configured.
	DefaultCity = "Nashville"

	uploadHashLen = 8
)

// Options configures a Transformer.
type Options struct {
	DefaultCity string
}

// Transformer maps one RawRecord to one CanonicalEvent or discards it.
// It holds no mutable state and is safe for concurrent use.
type Transformer struct {
	defaultCity string
	classifier  *Classifier
}

// New creates a Transformer.
func New(opts Options) *Transformer {
	city := strings.TrimSpace(opts.DefaultCity)
	if city == "" {
		city = DefaultCity
	}
	return &Transformer{
		defaultCity: city,
		classifier:  NewClassifier(),
	}
}

// Transform returns the canonical form of raw. The boolean is false when the
// record is discarded.
func (t *Transformer) Transform(raw domain.RawRecord) (*domain.CanonicalEvent, bool) {
	if len(raw.Fields) == 0 {
		return nil, false
	}

	ev := mapFields(raw)

	if domain.IsUploadSource(ev.Source) {
		t.applyUploadBackstops(raw, ev)
		return ev, true
	}

	if strings.TrimSpace(ev.Name) == "" {
		logger.Info("[Transform] discarding record without name", "source", ev.Source)
		return nil, false
	}

	ev.EventDate = isolate("date", ev.EventDate, StandardizeDate)
	ev.VenueName = isolate("venue", ev.VenueName, StandardizeVenue)
	t.categorize(ev)

	return ev, true
}

// mapFields copies canonical keys onto typed fields and every other key
// into Extra, unchanged.
func mapFields(raw domain.RawRecord) *domain.CanonicalEvent {
	ev := &domain.CanonicalEvent{
		Name:         raw.Get(domain.FieldName),
		URL:          raw.Get(domain.FieldURL),
		EventDate:    raw.Get(domain.FieldEventDate),
		Season:       raw.Get(domain.FieldSeason),
		VenueName:    raw.Get(domain.FieldVenueName),
		VenueAddress: raw.Get(domain.FieldVenueAddress),
		VenueCity:    raw.Get(domain.FieldVenueCity),
		Description:  raw.Get(domain.FieldDescription),
		Category:     raw.Get(domain.FieldCategory),
		Genre:        raw.Get(domain.FieldGenre),
		Latitude:     raw.Fields[domain.FieldLatitude],
		Longitude:    raw.Fields[domain.FieldLongitude],
		Source:       raw.Get(domain.FieldSource),
	}
	if ev.Source == "" {
		ev.Source = raw.Source
	}
	if ev.Latitude == nil {
		ev.Latitude = raw.Fields["lat"]
	}
	if ev.Longitude == nil {
		ev.Longitude = firstPresent(raw.Fields, "lng", "lon")
	}

	canonical := make(map[string]struct{}, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		canonical[f] = struct{}{}
	}
	for k, v := range raw.Fields {
		if _, ok := canonical[k]; ok {
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]any)
		}
		ev.Extra[k] = v
	}
	return ev
}

func firstPresent(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// applyUploadBackstops fills the three fields storage cannot do without.
// Nothing else about an uploaded record is changed.
func (t *Transformer) applyUploadBackstops(raw domain.RawRecord, ev *domain.CanonicalEvent) {
	if domain.IsNullText(ev.URL) {
		ev.URL = UploadURL(raw)
	}
	if domain.IsNullText(ev.Name) {
		ev.Name = PlaceholderName
	}
	if domain.IsNullText(ev.VenueCity) {
		ev.VenueCity = t.defaultCity
	}
}

// UploadURL derives a stable identity for an uploaded record that has none.
// The same record content always yields the same url, so re-uploading an
// unmodified file is deduplicated by the loader.
func UploadURL(raw domain.RawRecord) string {
	content := make(map[string]any, len(raw.Fields))
	for k, v := range raw.Fields {
		if k == domain.FieldURL {
			continue
		}
		content[k] = v
	}
	// json.Marshal sorts map keys, which makes the digest order-independent.
	data, err := json.Marshal(content)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", content))
	}
	sum := md5.Sum(data)
	return fmt.Sprintf("uploaded://%s/%s", domain.UploadKind(raw.Source), hex.EncodeToString(sum[:])[:uploadHashLen])
}

func (t *Transformer) categorize(ev *domain.CanonicalEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("[Transform] categorization error", "name", ev.Name, "error", r)
		}
	}()
	category, genre := t.classifier.Classify(ev.Name, ev.Description, ev.VenueName)
	if category != "" {
		ev.Category = category
	}
	if genre != "" {
		ev.Genre = genre
	}
}

// isolate runs one standardization step. Empty input, an error, a panic, or
// an empty result all leave the original value in place.
func isolate(step, value string, fn func(string) (string, error)) (out string) {
	if strings.TrimSpace(value) == "" {
		return value
	}
	out = value
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("[Transform] standardization panic", "step", step, "value", value, "error", r)
			out = value
		}
	}()
	standardized, err := fn(value)
	if err != nil {
		logger.Debug("[Transform] standardization skipped", "step", step, "value", value, "error", err)
		return value
	}
	if standardized == "" {
		return value
	}
	return standardized
}

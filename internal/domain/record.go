package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Upload source tags. Every record parsed from a user-provided document
// carries one of these.
const (
	SourceUploadCSV   = "user_upload_csv"
	SourceUploadJSON  = "user_upload_json"
	SourceUploadExcel = "user_upload_excel"

	uploadMarker = "user_upload"
)

var nullTexts = map[string]struct{}{
	"":     {},
	"none": {},
	"null": {},
	"n/a":  {},
}

// IsNullText reports whether a text value stands for "no value": empty,
// "none", "null" or "n/a", ignoring case and surrounding space.
func IsNullText(s string) bool {
	_, ok := nullTexts[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// IsUploadSource reports whether a source tag marks human-provided data.
func IsUploadSource(source string) bool {
	return strings.Contains(strings.ToLower(source), uploadMarker)
}

// UploadKind returns the document kind encoded in an upload tag
// ("csv", "json", "excel"), or "unknown".
func UploadKind(source string) string {
	lower := strings.ToLower(source)
	idx := strings.Index(lower, uploadMarker)
	if idx < 0 {
		return "unknown"
	}
	kind := strings.Trim(lower[idx+len(uploadMarker):], "_- ")
	if kind == "" {
		return "unknown"
	}
	return kind
}

// RawRecord is one record exactly as produced by a source, before any
// normalization. Fields is open: each source decides its own keys.
type RawRecord struct {
	Source string         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// NewRawRecord builds a record and stamps the source tag into its fields,
// the way every producer reports where a record came from.
func NewRawRecord(source string, fields map[string]any) RawRecord {
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["source"] = source
	return RawRecord{Source: source, Fields: f}
}

// Has reports whether key is present with a non-nil value.
func (r RawRecord) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

// Get returns the field rendered as text. Absent and nil values are "".
func (r RawRecord) Get(key string) string {
	v, ok := r.Fields[key]
	if !ok {
		return ""
	}
	return Text(v)
}

// MarshalPayload renders the fields as the JSON document stored by raw capture.
func (r RawRecord) MarshalPayload() ([]byte, error) {
	return json.Marshal(r.Fields)
}

// Text renders a scalar field value as a string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// CapturedRecord is a raw record as persisted by raw capture.
type CapturedRecord struct {
	ID         int64
	Record     RawRecord
	CapturedAt time.Time
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUploadSource(t *testing.T) {
	assert.True(t, IsUploadSource(SourceUploadCSV))
	assert.True(t, IsUploadSource("USER_UPLOAD_json"))
	assert.False(t, IsUploadSource("google_places"))
	assert.False(t, IsUploadSource(""))
}

func TestIsNullText(t *testing.T) {
	for _, s := range []string{"", "  ", "None", "NULL", " n/a "} {
		assert.True(t, IsNullText(s), s)
	}
	assert.False(t, IsNullText("Nashville"))
	assert.False(t, IsNullText("na"))
}

func TestUploadKind(t *testing.T) {
	assert.Equal(t, "csv", UploadKind(SourceUploadCSV))
	assert.Equal(t, "excel", UploadKind(SourceUploadExcel))
	assert.Equal(t, "unknown", UploadKind("user_upload"))
	assert.Equal(t, "unknown", UploadKind("nashville_feed"))
}

func TestRawRecordGet(t *testing.T) {
	r := NewRawRecord("feed", map[string]any{
		"name":     "Show",
		"latitude": 36.16,
		"rating":   json.Number("4.5"),
		"empty":    nil,
	})
	assert.Equal(t, "Show", r.Get("name"))
	assert.Equal(t, "36.16", r.Get("latitude"))
	assert.Equal(t, "4.5", r.Get("rating"))
	assert.Equal(t, "", r.Get("empty"))
	assert.Equal(t, "", r.Get("missing"))
	assert.Equal(t, "feed", r.Get("source"))
	assert.False(t, r.Has("empty"))
	assert.True(t, r.Has("name"))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusRunning, ParseStatus("running"))
	assert.Equal(t, StatusComplete, ParseStatus("complete"))
	assert.Equal(t, StatusIdle, ParseStatus(""))
	assert.Equal(t, StatusIdle, ParseStatus("garbage"))
}

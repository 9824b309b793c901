// Package document parses user-provided documents into raw records.
//
// The declared file type picks the parser: csv is tabular, json is an
// object or an array of objects, and xlsx/xls is a spreadsheet whose
// first sheet has a header row. Every record is tagged with the upload
// source for its kind. Types that are accepted for upload but have no
// parser (pdf, docx) return ErrUnsupportedType.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ignite/event-etl/internal/domain"
)

// ErrUnsupportedType is returned for a file type with no parser.
var ErrUnsupportedType = errors.New("unsupported document type")

// AllowedExtensions are the file types accepted at the upload boundary.
var AllowedExtensions = []string{"csv", "json", "pdf", "xlsx", "xls", "docx"}

const utf8BOM = "\uFEFF"

// FileType returns the lower-case extension of name without the dot.
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// AllowedExtension reports whether name has an accepted extension.
func AllowedExtension(name string) bool {
	ext := FileType(name)
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces a client-supplied name to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// Parse reads the document at path according to its declared type.
func Parse(ctx context.Context, path, fileType string) ([]domain.RawRecord, error) {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "csv":
		return ParseCSV(ctx, path)
	case "json":
		return ParseJSON(ctx, path)
	case "xlsx", "xls":
		return ParseSpreadsheet(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
}

// normalizeHeader trims a column name and strips a byte order mark. Names
// that spell a canonical field in another case or with spaces ("Venue
// Name") are folded onto it; all other names are kept as written.
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	folded := strings.ToLower(strings.Join(strings.Fields(h), "_"))
	for _, f := range domain.CanonicalFields {
		if folded == f {
			return f
		}
	}
	return h
}

// rowRecord builds a record from a header and a row of cells. Cells past
// the header are dropped and missing cells are empty. It returns false
// for a row with no non-blank cell.
func rowRecord(source string, headers, row []string) (domain.RawRecord, bool) {
	fields := make(map[string]any, len(headers))
	blank := true
	for i, h := range headers {
		if h == "" {
			continue
		}
		var v string
		if i < len(row) {
			v = strings.TrimPrefix(row[i], utf8BOM)
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		fields[h] = v
	}
	if blank {
		return domain.RawRecord{}, false
	}
	return domain.NewRawRecord(source, fields), true
}

package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ignite/event-etl/internal/domain"
)

// ParseJSON reads a JSON file holding one object or an array of objects.
// Values keep their JSON types; numbers are kept as json.Number.
func ParseJSON(ctx context.Context, path string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	return decodeJSON(ctx, data)
}

func decodeJSON(ctx context.Context, data []byte) ([]domain.RawRecord, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []map[string]any
	if data[0] == '{' {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		objects = []map[string]any{obj}
	} else if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(objects))
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlankObject(obj) {
			continue
		}
		fields := make(map[string]any, len(obj))
		for k, v := range obj {
			fields[normalizeHeader(k)] = v
		}
		records = append(records, domain.NewRawRecord(domain.SourceUploadJSON, fields))
	}
	return records, nil
}

func isBlankObject(obj map[string]any) bool {
	for _, v := range obj {
		if s, ok := v.(string); ok {
			if len(bytes.TrimSpace([]byte(s))) > 0 {
				return false
			}
			continue
		}
		if v != nil {
			return false
		}
	}
	return true
}

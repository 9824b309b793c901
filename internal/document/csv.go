package document

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ignite/event-etl/internal/domain"
)

// ParseCSV reads a CSV file whose first row names the columns.
func ParseCSV(ctx context.Context, path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(ctx, f)
}

func readCSV(ctx context.Context, r io.Reader) ([]domain.RawRecord, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 1024*1024))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = normalizeHeader(h)
	}

	var records []domain.RawRecord
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if rec, ok := rowRecord(domain.SourceUploadCSV, headers, row); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

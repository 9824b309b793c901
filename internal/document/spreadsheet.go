package document

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/pkg/logger"
)

// ParseSpreadsheet reads the first sheet of a workbook. The first row
// names the columns and cells are read as their formatted text.
func ParseSpreadsheet(ctx context.Context, path string) ([]domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	if len(sheets) > 1 {
		logger.Info("[Document] reading first sheet only", "path", path, "sheet", sheets[0], "sheets", len(sheets))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
	}

	var records []domain.RawRecord
	for _, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec, ok := rowRecord(domain.SourceUploadExcel, headers, row); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

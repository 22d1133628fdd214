package workbookxlsx

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Source reads xlsx workbooks directly, so training pairs do not have to
// pass through a JSON export step first.
type Source struct{}

func New() *Source {
	return &Source{}
}

const (
	// headerScanDepth bounds how many leading rows are probed for the
	// header row; title banners and legal notes sit above it in practice.
	headerScanDepth = 10
	// headerCellRatio is the share of cells in a row that must be
	// non-empty and distinct for the row to count as the header.
	headerCellRatio = 0.6

	minDataRows    = 2
	minDataColumns = 2
)

var skipSheetWords = []string{"instruction", "toc", "validation", "info", "confidential"}

func (s *Source) LoadDocument(_ context.Context, path string) (*domain.DocumentSnapshot, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook "+filepath.Base(path), err)
	}
	defer book.Close()

	doc := &domain.DocumentSnapshot{Name: documentName(path)}
	for _, sheetName := range book.GetSheetList() {
		if skipSheetName(sheetName) {
			continue
		}
		rows, err := book.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		sheet, ok := materializeSheet(sheetName, rows)
		if !ok {
			continue
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}
	return doc, nil
}

// materializeSheet turns the raw cell grid into a column-keyed snapshot.
// The header row defines the table width; sheets where no header row is
// found, or with too little data below it, are not data sheets.
func materializeSheet(name string, rows [][]string) (domain.SheetSnapshot, bool) {
	headerIdx, found := findHeaderRow(rows)
	if !found {
		return domain.SheetSnapshot{}, false
	}

	headerCells := rows[headerIdx]
	width := len(headerCells)
	if width < minDataColumns {
		return domain.SheetSnapshot{}, false
	}

	columns := make([]string, width)
	headers := make(map[string]string, width)
	for i := 0; i < width; i++ {
		key := domain.ColumnKey(i)
		columns[i] = key
		if header := strings.TrimSpace(headerCells[i]); header != "" {
			headers[key] = header
		}
	}

	dataRows := rows[headerIdx+1:]
	if len(dataRows) < minDataRows {
		return domain.SheetSnapshot{}, false
	}

	snapshot := domain.SheetSnapshot{
		Name:    name,
		Columns: columns,
		Headers: headers,
		Rows:    make([]map[string]string, len(dataRows)),
	}
	for ri, cells := range dataRows {
		row := make(map[string]string, width)
		for i := 0; i < width; i++ {
			if i < len(cells) {
				row[domain.ColumnKey(i)] = strings.TrimSpace(cells[i])
			} else {
				row[domain.ColumnKey(i)] = ""
			}
		}
		snapshot.Rows[ri] = row
	}
	return snapshot, true
}

func findHeaderRow(rows [][]string) (int, bool) {
	depth := len(rows)
	if depth > headerScanDepth {
		depth = headerScanDepth
	}
	for i := 0; i < depth; i++ {
		if isHeaderRow(rows[i]) {
			return i, true
		}
	}
	return 0, false
}

func isHeaderRow(cells []string) bool {
	if len(cells) < minDataColumns {
		return false
	}
	distinct := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		distinct[strings.ToLower(trimmed)] = struct{}{}
	}
	if len(distinct) < minDataColumns {
		return false
	}
	return float64(len(distinct)) >= headerCellRatio*float64(len(cells))
}

func skipSheetName(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range skipSheetWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

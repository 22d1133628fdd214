package snapshotjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Source reads sheet-export JSON documents: a top-level object mapping
// sheet names to {"columns": [...], "headers": {...}, "rows": [{...}]}.
// Older exports use "data" instead of "rows"; both are accepted.
type Source struct{}

func New() *Source {
	return &Source{}
}

// Sheets whose names suggest non-tabular content. Matched as substrings
// of the lowercased sheet name.
var skipSheetWords = []string{"instruction", "toc", "validation", "info", "confidential"}

const (
	minDataRows    = 2
	minDataColumns = 2
)

type sheetPayload struct {
	Columns []string          `json:"columns"`
	Headers map[string]string `json:"headers"`
	Rows    []map[string]any  `json:"rows"`
	Data    []map[string]any  `json:"data"`
}

func (s *Source) LoadDocument(_ context.Context, path string) (*domain.DocumentSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read document "+filepath.Base(path), err)
	}

	raws, order, err := decodeDocument(data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse document "+filepath.Base(path), err)
	}

	doc := &domain.DocumentSnapshot{Name: documentName(path)}
	for _, name := range order {
		if skipSheetName(name) {
			continue
		}
		// Exports carry non-tabular sheets alongside the data: free-text
		// notes, metadata objects. Anything without the columns/rows shape
		// is skipped, same as name-filtered sheets.
		payload, ok := decodeSheet(raws[name])
		if !ok {
			continue
		}
		sheet, ok := materializeSheet(name, payload)
		if !ok || !isDataSheet(sheet) {
			continue
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}
	return doc, nil
}

// decodeDocument walks the top-level object with a token decoder so sheet
// order in the file is preserved; a plain map would shuffle it. Values stay
// raw here: only malformed JSON is fatal, sheet shape is judged per sheet.
func decodeDocument(data []byte) (map[string]json.RawMessage, []string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("read document root: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("document root must be a JSON object")
	}

	raws := make(map[string]json.RawMessage)
	var order []string
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet name: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("sheet name must be a string, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		raws[name] = raw
		order = append(order, name)
	}
	return raws, order, nil
}

// decodeSheet reads one sheet value, keeping cell numbers as json.Number
// so they round-trip as written. A value of the wrong shape is not a data
// sheet; it never fails the document.
func decodeSheet(raw json.RawMessage) (sheetPayload, bool) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var payload sheetPayload
	if err := decoder.Decode(&payload); err != nil {
		return sheetPayload{}, false
	}
	return payload, true
}

func materializeSheet(name string, payload sheetPayload) (domain.SheetSnapshot, bool) {
	if len(payload.Columns) == 0 {
		return domain.SheetSnapshot{}, false
	}

	rawRows := payload.Rows
	if len(rawRows) == 0 {
		rawRows = payload.Data
	}

	columns := make([]string, len(payload.Columns))
	headers := make(map[string]string, len(payload.Columns))
	for i, rawKey := range payload.Columns {
		key := domain.ColumnKey(i)
		columns[i] = key
		if header, ok := payload.Headers[rawKey]; ok && strings.TrimSpace(header) != "" {
			headers[key] = strings.TrimSpace(header)
		} else if !isPlaceholderKey(rawKey) {
			headers[key] = strings.TrimSpace(rawKey)
		}
	}

	rows := make([]map[string]string, len(rawRows))
	for ri, rawRow := range rawRows {
		row := make(map[string]string, len(payload.Columns))
		for i, rawKey := range payload.Columns {
			row[domain.ColumnKey(i)] = stringifyCell(rawRow[rawKey])
		}
		rows[ri] = row
	}

	// Exports keyed by generic placeholders and shipping no header map put
	// the header text in the first data row.
	if len(payload.Headers) == 0 && allPlaceholderKeys(payload.Columns) && len(rows) > 0 {
		for _, key := range columns {
			if header := strings.TrimSpace(rows[0][key]); header != "" {
				headers[key] = header
			}
		}
		rows = rows[1:]
	}

	return domain.SheetSnapshot{
		Name:    name,
		Columns: columns,
		Headers: headers,
		Rows:    rows,
	}, true
}

func stringifyCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

var placeholderKeyPattern = regexp.MustCompile(`^col_\d+$`)

func isPlaceholderKey(key string) bool {
	return placeholderKeyPattern.MatchString(strings.ToLower(strings.TrimSpace(key)))
}

func allPlaceholderKeys(keys []string) bool {
	for _, key := range keys {
		if !isPlaceholderKey(key) {
			return false
		}
	}
	return len(keys) > 0
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

func isDataSheet(sheet domain.SheetSnapshot) bool {
	return len(sheet.Rows) >= minDataRows && len(sheet.Columns) >= minDataColumns
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

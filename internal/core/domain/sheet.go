package domain

import (
	"fmt"
	"strings"
)

// SheetSnapshot is the materialized form of one sheet as supplied by a
// document source: positional column keys in sheet order, the header text
// detected per column, and data rows keyed by column.
type SheetSnapshot struct {
	Name    string              `json:"name"`
	Columns []string            `json:"columns"`
	Headers map[string]string   `json:"headers,omitempty"`
	Rows    []map[string]string `json:"rows"`
}

// DocumentSnapshot is one document: all of its data sheets.
type DocumentSnapshot struct {
	Name   string          `json:"name"`
	Sheets []SheetSnapshot `json:"sheets"`
}

// ColumnKey builds the positional key used for column identity. Training
// matches columns by position, not header text, since headers may be
// generic placeholders.
func ColumnKey(index int) string {
	return fmt.Sprintf("col_%d", index)
}

// ColumnValues returns the column's values in row order. Missing cells
// come back as empty strings so before/after sides stay aligned.
func (s SheetSnapshot) ColumnValues(column string) []string {
	values := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		values[i] = row[column]
	}
	return values
}

// HasColumn reports whether the sheet carries the column key.
func (s SheetSnapshot) HasColumn(column string) bool {
	for _, key := range s.Columns {
		if key == column {
			return true
		}
	}
	return false
}

// Header returns the header text of a column, falling back to the key
// when the source detected none.
func (s SheetSnapshot) Header(column string) string {
	if header, ok := s.Headers[column]; ok && strings.TrimSpace(header) != "" {
		return header
	}
	return column
}

// ValueColumns lists the columns carrying fillable data. The first column
// holds row labels by export convention and is excluded.
func (s SheetSnapshot) ValueColumns() []string {
	if len(s.Columns) <= 1 {
		return nil
	}
	return s.Columns[1:]
}

// SiblingHeaders returns the header texts of all value columns except the
// given one, in sheet order. Used as oracle context.
func (s SheetSnapshot) SiblingHeaders(column string) []string {
	siblings := make([]string, 0, len(s.Columns))
	for _, other := range s.ValueColumns() {
		if other == column {
			continue
		}
		siblings = append(siblings, s.Header(other))
	}
	return siblings
}

// Sheet finds a sheet by name within the document.
func (d DocumentSnapshot) Sheet(name string) (SheetSnapshot, bool) {
	for _, sheet := range d.Sheets {
		if sheet.Name == name {
			return sheet, true
		}
	}
	return SheetSnapshot{}, false
}

// SheetNames lists sheet names in document order.
func (d DocumentSnapshot) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, sheet := range d.Sheets {
		names[i] = sheet.Name
	}
	return names
}

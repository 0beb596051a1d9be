// Package table models a fetched spreadsheet snapshot: ordered column labels
// and ragged rows of typed cells. The matching engine never sees the raw
// transport shapes; everything is resolved to Cell at this boundary.
package table

import (
	"strconv"
	"strings"
)

// CellKind discriminates the cell variants.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
)

// Cell is a single typed spreadsheet value. Formatted carries the display
// string the source rendered (dates, locale decimals); it round-trips to the
// UI untouched.
type Cell struct {
	Kind      CellKind
	Number    float64
	Text      string
	Formatted string
}

// Empty returns the empty cell.
func Empty() Cell {
	return Cell{Kind: CellEmpty}
}

// Number returns a numeric cell with an optional formatted display string.
func Number(n float64, formatted string) Cell {
	return Cell{Kind: CellNumber, Number: n, Formatted: formatted}
}

// Text returns a text cell.
func Text(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

// IsEmpty reports whether the cell holds no usable value.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.Formatted) == ""
	default:
		return false
	}
}

// Display returns the value as the dashboard should render it: the source's
// formatted string when present, otherwise the raw value.
func (c Cell) Display() string {
	if c.Formatted != "" {
		return c.Formatted
	}
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Table is one sheet snapshot. Rows may be shorter than Columns; missing
// cells read as Empty.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// Cell returns the cell at (row, col), or Empty when out of range.
func (t *Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) {
		return Empty()
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// RowIsBlank reports whether every cell of the row is empty. Blank rows are
// excluded from respondent counts.
func (t *Table) RowIsBlank(row int) bool {
	if row < 0 || row >= len(t.Rows) {
		return true
	}
	for _, c := range t.Rows[row] {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// LastNonEmpty returns the greatest column index with a non-empty cell in the
// row, or -1 when the row is blank.
func (t *Table) LastNonEmpty(row int) int {
	if row < 0 || row >= len(t.Rows) {
		return -1
	}
	for col := len(t.Rows[row]) - 1; col >= 0; col-- {
		if !t.Rows[row][col].IsEmpty() {
			return col
		}
	}
	return -1
}

// LastNonEmptyRow returns the greatest row index with a non-empty cell in the
// column, or -1 when the column is blank.
func (t *Table) LastNonEmptyRow(col int) int {
	for row := len(t.Rows) - 1; row >= 0; row-- {
		if !t.Cell(row, col).IsEmpty() {
			return row
		}
	}
	return -1
}

// ColumnLetter converts a 0-based column index to the spreadsheet letter
// notation (0 -> A, 11 -> L, 71 -> BT).
func ColumnLetter(col int) string {
	if col < 0 {
		return ""
	}
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads one sheet of an Excel workbook into a Table. The first row
// is taken as the column labels. Used by the resolve subcommand to reconcile
// against offline snapshots exported by hotel staff.
func LoadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		cells := make([]Cell, len(row))
		for i, raw := range row {
			cells[i] = parseXLSXValue(raw)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// parseXLSXValue keeps the workbook's rendered string as the display value
// and tags numeric cells so comparisons behave like the gviz path.
func parseXLSXValue(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty()
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
		return Number(n, raw)
	}
	return Text(raw)
}

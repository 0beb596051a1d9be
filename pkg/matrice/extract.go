package matrice

import (
	"fmt"
	"strings"

	"github.com/guestpulse/matrice-engine/pkg/table"
)

// Pure readout of a resolved slot. Values are never numerically parsed here;
// downstream display code owns tolerant numeric handling.

// extractRow reads one respondent laid out as a matrice row.
func (m *Matcher) extractRow(t *table.Table, row int) Result {
	overallCol := overallPosition
	if t.Cell(row, overallCol).IsEmpty() {
		overallCol = t.LastNonEmpty(row)
	}

	feedbackCol := headerPosition(t.Columns, m.feedbackNorm)

	var categories []Category
	width := len(t.Columns)
	if row < len(t.Rows) && len(t.Rows[row]) > width {
		width = len(t.Rows[row])
	}
	// Position 0 holds the respondent name; the overall slot is reported
	// separately.
	for col := 1; col < width; col++ {
		if col == overallCol {
			continue
		}
		header := ""
		if col < len(t.Columns) {
			header = t.Columns[col]
		}
		cell := t.Cell(row, col)
		if strings.TrimSpace(header) == "" && cell.IsEmpty() {
			continue
		}
		categories = append(categories, Category{
			Name:  categoryName(header, col),
			Value: cell.Display(),
		})
	}

	res := Result{Categories: categories}
	if overallCol >= 0 {
		if c := t.Cell(row, overallCol); !c.IsEmpty() {
			res.Overall = ptr(c.Display())
			res.Column = ptr(table.ColumnLetter(overallCol))
		}
	}
	if feedbackCol >= 0 {
		if c := t.Cell(row, feedbackCol); !c.IsEmpty() {
			res.Feedback = ptr(c.Display())
		}
	}
	return res
}

// extractColumn reads one respondent laid out as a matrice column. Category
// labels come from each row's first cell; the final rows hold the rollup and
// feedback by matrice convention.
func (m *Matcher) extractColumn(t *table.Table, col int) Result {
	overallRow := overallPosition
	if t.Cell(overallRow, col).IsEmpty() {
		overallRow = t.LastNonEmptyRow(col)
	}

	feedbackRow := -1
	for i := range t.Rows {
		if NormalizeText(t.Cell(i, 0).Display()) == m.feedbackNorm {
			feedbackRow = i
			break
		}
	}
	if feedbackRow < 0 && feedbackFallbackPosition < len(t.Rows) {
		feedbackRow = feedbackFallbackPosition
	}

	var categories []Category
	for row := 1; row < len(t.Rows); row++ {
		if row == overallRow {
			continue
		}
		label := t.Cell(row, 0).Display()
		cell := t.Cell(row, col)
		if strings.TrimSpace(label) == "" && cell.IsEmpty() {
			continue
		}
		categories = append(categories, Category{
			Name:  categoryName(label, row),
			Value: cell.Display(),
		})
	}

	res := Result{
		Categories: categories,
		Column:     ptr(table.ColumnLetter(col)),
	}
	if overallRow >= 0 {
		if c := t.Cell(overallRow, col); !c.IsEmpty() {
			res.Overall = ptr(c.Display())
		}
	}
	if feedbackRow >= 0 {
		if c := t.Cell(feedbackRow, col); !c.IsEmpty() {
			res.Feedback = ptr(c.Display())
		}
	}
	return res
}

// headerPosition finds the position whose normalized header equals target,
// falling back to the fixed feedback offset when the header is absent.
func headerPosition(columns []string, target string) int {
	for j, label := range columns {
		if NormalizeText(label) == target {
			return j
		}
	}
	if feedbackFallbackPosition < len(columns) {
		return feedbackFallbackPosition
	}
	return -1
}

// categoryName substitutes a synthetic label for blank headers so every
// value has a display name.
func categoryName(header string, position int) string {
	if strings.TrimSpace(header) != "" {
		return header
	}
	return fmt.Sprintf("Col %d", position+1)
}

func ptr(s string) *string { return &s }

package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The Google Visualization table-query endpoint wraps its JSON in a JS
// callback: `/*O_o*/\ngoogle.visualization.Query.setResponse({...});`.
// ParseGviz unwraps the envelope and resolves every cell to a typed Cell.

type gvizResponse struct {
	Status string      `json:"status"`
	Errors []gvizError `json:"errors"`
	Table  gvizTable   `json:"table"`
}

type gvizError struct {
	Reason  string `json:"reason"`
	Message string `json:"detailed_message"`
}

type gvizTable struct {
	Cols []gvizCol `json:"cols"`
	Rows []gvizRow `json:"rows"`
}

type gvizCol struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type gvizRow struct {
	C []*gvizCell `json:"c"`
}

type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f"`
}

// ParseGviz parses a raw table-query response body into a Table.
func ParseGviz(data []byte) (*Table, error) {
	start := strings.IndexByte(string(data), '(')
	end := strings.LastIndexByte(string(data), ')')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("gviz: no JSON envelope in %d-byte response", len(data))
	}

	var resp gvizResponse
	if err := json.Unmarshal(data[start+1:end], &resp); err != nil {
		return nil, fmt.Errorf("gviz: decode response: %w", err)
	}
	if resp.Status == "error" {
		reason := "unknown"
		if len(resp.Errors) > 0 {
			reason = resp.Errors[0].Reason
			if resp.Errors[0].Message != "" {
				reason += ": " + resp.Errors[0].Message
			}
		}
		return nil, fmt.Errorf("gviz: query failed: %s", reason)
	}

	t := &Table{
		Columns: make([]string, len(resp.Table.Cols)),
		Rows:    make([][]Cell, 0, len(resp.Table.Rows)),
	}
	for i, col := range resp.Table.Cols {
		t.Columns[i] = col.Label
	}
	for _, row := range resp.Table.Rows {
		cells := make([]Cell, len(row.C))
		for i, c := range row.C {
			cells[i] = convertCell(c)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// convertCell maps the duck-typed gviz value (null, number, string, bool) to
// a tagged Cell. Date values arrive as `Date(Y,M,D)` literal strings plus a
// formatted display string; both are kept.
func convertCell(c *gvizCell) Cell {
	if c == nil || c.V == nil {
		return Empty()
	}
	switch v := c.V.(type) {
	case float64:
		return Number(v, c.F)
	case bool:
		return Cell{Kind: CellText, Text: strconv.FormatBool(v), Formatted: c.F}
	case string:
		return Cell{Kind: CellText, Text: v, Formatted: c.F}
	default:
		return Cell{Kind: CellText, Text: fmt.Sprintf("%v", v), Formatted: c.F}
	}
}

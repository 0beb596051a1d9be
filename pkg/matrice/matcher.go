package matrice

import (
	"log/slog"
	"strings"

	"github.com/guestpulse/matrice-engine/pkg/table"
)

// Layout is the orientation of a matrice sheet. It is recomputed per request;
// the same hotel group exports both shapes depending on who set the sheet up.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutRowPerRespondent
	LayoutColumnPerRespondent
)

// Identifier carries the query-side identifiers for one respondent. At least
// one of Email/Name/Date is expected. ExplicitRow is a 1-based override that
// bypasses matching entirely (forced/debug lookups).
type Identifier struct {
	Email       string
	Name        string
	Date        string
	ExplicitRow int
}

// Category is one per-category score, value kept as the display string so
// locale formatting (comma decimals, dashes) round-trips to the UI.
type Category struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Result is the reconciliation outcome. Nil fields mean "not determined",
// which is distinct from an empty string on the wire.
type Result struct {
	Categories []Category `json:"categories"`
	Overall    *string    `json:"overall"`
	Column     *string    `json:"column"`
	Feedback   *string    `json:"feedback"`
}

const (
	// Overall score conventionally lives in spreadsheet column L.
	overallPosition = 11
	// Last-resort feedback position (column BT) when no header matches.
	feedbackFallbackPosition = 71
	// First-cell marker for the sheet's anonymous-respondent convention.
	anonymousLabel = "anonyme"

	// DefaultFeedbackHeader is the survey's free-text question; the feedback
	// position is located by header text, not offset, whenever possible.
	DefaultFeedbackHeader = "Un commentaire, une suggestion ?"
)

// Matcher locates a respondent's slot in a matrice table and extracts their
// scores. Safe for concurrent use; all state is per-call.
type Matcher struct {
	logger       *slog.Logger
	feedbackNorm string
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithFeedbackHeader overrides the header phrase used to locate the feedback
// column (some hotels rename the free-text question).
func WithFeedbackHeader(header string) Option {
	return func(m *Matcher) { m.feedbackNorm = NormalizeText(header) }
}

// NewMatcher returns a Matcher logging ambiguity warnings to logger.
func NewMatcher(logger *slog.Logger, opts ...Option) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		logger:       logger,
		feedbackNorm: NormalizeText(DefaultFeedbackHeader),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves an identifier against the matrice table, falling back to
// positional correspondence with the respondent sheet when direct matching
// fails. The second return is false when no slot was found; the Result is
// then all-nil. A miss is a normal outcome, never an error.
//
// Search layers, first success wins:
//  1. explicit row override
//  2. row-per-respondent cell scan (exact/substring, date disambiguation,
//     anonymous fallback)
//  3. column-per-respondent header scan
//  4. positional fallback via the respondent sheet
func (m *Matcher) Match(id Identifier, respondents, matrice *table.Table) (Result, bool) {
	if matrice == nil {
		return Result{}, false
	}

	if id.ExplicitRow > 0 && id.ExplicitRow <= len(matrice.Rows) {
		return m.extractRow(matrice, id.ExplicitRow-1), true
	}

	email := NormalizeText(id.Email)
	name := NormalizeText(id.Name)
	date, hasDate := NormalizeDate(id.Date)

	if row, ok := m.scanRows(matrice, email, name, date, hasDate); ok {
		return m.extractRow(matrice, row), true
	}

	if col, ok := scanColumns(matrice, email, name); ok {
		return m.extractColumn(matrice, col), true
	}

	// The sheets are kept row-synchronized by convention, not guarantee;
	// a hit here is low confidence.
	if respondents != nil {
		if row, ok := m.scanRows(respondents, email, name, date, hasDate); ok && row < len(matrice.Rows) {
			m.logger.Warn("matrice slot resolved by positional fallback",
				"row", row, "email", id.Email != "", "name", id.Name != "")
			return m.extractRow(matrice, row), true
		}
	}

	return Result{}, false
}

// scanRows collects candidate rows whose cells match the email or name, then
// applies the tie-break rules. With no identifiers at all, it falls back to
// the sheet's "Anonyme" row.
func (m *Matcher) scanRows(t *table.Table, email, name, date string, hasDate bool) (int, bool) {
	var candidates []int
	for i := range t.Rows {
		if t.RowIsBlank(i) {
			continue
		}
		if rowMatchesIdentifier(t, i, email, name) {
			candidates = append(candidates, i)
		}
	}

	switch len(candidates) {
	case 0:
		if email == "" && name == "" {
			for i := range t.Rows {
				if NormalizeText(t.Cell(i, 0).Display()) == anonymousLabel {
					return i, true
				}
			}
		}
		return 0, false
	case 1:
		return candidates[0], true
	}

	if hasDate {
		for _, i := range candidates {
			if rowHasDate(t, i, date) {
				return i, true
			}
		}
	}

	// Known limitation: same-day duplicates resolve to the first candidate
	// in row order, which can misattribute scores. Kept for compatibility
	// with how the sheets have always been read.
	m.logger.Warn("ambiguous respondent match, keeping first candidate",
		"candidates", len(candidates), "row", candidates[0], "dated", hasDate)
	return candidates[0], true
}

// scanColumns looks for a respondent column by header label: exact match
// first, then substring in either direction.
func scanColumns(t *table.Table, email, name string) (int, bool) {
	for j, label := range t.Columns {
		n := NormalizeText(label)
		if n == "" {
			continue
		}
		if (email != "" && n == email) || (name != "" && n == name) {
			return j, true
		}
	}
	for j, label := range t.Columns {
		n := NormalizeText(label)
		if textMatches(n, email) || textMatches(n, name) {
			return j, true
		}
	}
	return 0, false
}

func rowMatchesIdentifier(t *table.Table, row int, email, name string) bool {
	for col := range t.Rows[row] {
		n := NormalizeText(t.Cell(row, col).Display())
		if textMatches(n, email) || textMatches(n, name) {
			return true
		}
	}
	return false
}

// textMatches reports whether a normalized cell and a normalized query agree:
// equal, or one contained in the other. Containment runs both ways to
// tolerate partial titles and extra words on either side.
func textMatches(cell, query string) bool {
	if cell == "" || query == "" {
		return false
	}
	return cell == query || strings.Contains(cell, query) || strings.Contains(query, cell)
}

func rowHasDate(t *table.Table, row int, date string) bool {
	for col := range t.Rows[row] {
		if d, ok := NormalizeDate(t.Cell(row, col).Display()); ok && d == date {
			return true
		}
	}
	return false
}

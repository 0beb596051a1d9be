package matrice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date cells arrive in whatever shape the hotel's sheet produced: gviz
// `Date(Y,M,D)` literals, French day/month/year strings, ISO timestamps,
// free-text month names, or raw spreadsheet serial numbers. NormalizeDate
// folds them all to DD/MM/YYYY. Unparseable input is "no date constraint",
// never an error.

var (
	gvizDateRe = regexp.MustCompile(`^Date\((\d{4}),(\d{1,2}),(\d{1,2})(?:,\d{1,2},\d{1,2},\d{1,2})?\)$`)
	dmyRe      = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2}|\d{4})$`)
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	frenchRe   = regexp.MustCompile(`^(\d{1,2})(?:er)?\s+([a-z]+)\.?\s+(\d{4})$`)
)

var frenchMonths = [12]string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin",
	"juillet", "aout", "septembre", "octobre", "novembre", "decembre",
}

// Layouts for the generic fallback parse, tried in order.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// sheetEpoch is day zero of the legacy spreadsheet serial scheme
// (1899-12-30, offset by the inherited leap-year bug).
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSheetSerial is 9999-12-31 in the serial scheme, the last date the
// format can render.
const maxSheetSerial = 2958465

// NormalizeDate converts a raw date string to canonical DD/MM/YYYY form.
// The second return is false when no supported format matched.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// 1. gviz serialized literal; month index is zero-based.
	if m := gvizDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return calendarDate(y, mo+1, d)
	}

	// 2. DD/MM/YYYY and the dot/dash variants; 2-digit years are 20xx.
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		ys := m[3]
		if len(ys) == 2 {
			ys = "20" + ys
		}
		y, _ := strconv.Atoi(ys)
		return calendarDate(y, mo, d)
	}

	// 3. ISO date, optional time component ignored.
	if m := isoRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return calendarDate(y, mo, d)
	}

	// 4. French month names, e.g. "9 juillet 2025" or "1er déc. 2025".
	if m := frenchRe.FindStringSubmatch(NormalizeText(s)); m != nil {
		d, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[3])
		if mo, ok := frenchMonth(m[2]); ok {
			return calendarDate(y, mo, d)
		}
	}

	// 5. Generic layout fallback.
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDate(t.Year(), int(t.Month()), t.Day())
		}
	}

	// 6. Numeric spreadsheet serial: days since the sheet epoch. Bounded to
	// the scheme's own range (1 = 1899-12-31, maxSheetSerial = 9999-12-31);
	// anything outside is not a date cell.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial <= maxSheetSerial {
		t := sheetEpoch.AddDate(0, 0, int(serial))
		return calendarDate(t.Year(), int(t.Month()), t.Day())
	}

	return "", false
}

// frenchMonth resolves a normalized month name or abbreviation by prefix
// against the fixed table ("juil" -> July, "dec" -> December).
func frenchMonth(name string) (int, bool) {
	if len(name) < 3 {
		return 0, false
	}
	for i, full := range frenchMonths {
		if strings.HasPrefix(full, name) {
			return i + 1, true
		}
	}
	return 0, false
}

// calendarDate validates and renders a date as DD/MM/YYYY.
func calendarDate(y, mo, d int) (string, bool) {
	if y < 1 || mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", d, mo, y), true
}

package xlsx

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind classifies a raw spreadsheet cell before any field-specific
// coercion runs.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// Cell is the tagged representation of one spreadsheet cell. Raw always holds
// the trimmed source text; Number and Date are only meaningful for their kind.
type Cell struct {
	Kind   CellKind
	Raw    string
	Number decimal.Decimal
	Date   time.Time
}

// Markers spreadsheet libraries emit for missing values.
var emptyMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
	"#n/a": true,
	"-":    true,
}

// Date layouts tried in order. The first eight follow the broker's known
// formats; the rest are permissive fallbacks for hand-edited sheets and for
// the formats excelize renders styled date cells in.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"20060102",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1-2-06",
	"02.01.2006",
}

// Classify converts one raw cell value into its tagged form. It never fails:
// anything that is not empty, numeric or date-shaped is text.
func Classify(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if emptyMarkers[strings.ToLower(trimmed)] {
		return Cell{Kind: CellEmpty, Raw: trimmed}
	}
	if n, ok := parseNumber(trimmed); ok {
		return Cell{Kind: CellNumber, Raw: trimmed, Number: n}
	}
	if d, ok := parseDateText(trimmed); ok {
		return Cell{Kind: CellDate, Raw: trimmed, Date: d}
	}
	return Cell{Kind: CellText, Raw: trimmed}
}

// CoerceDecimal converts a cell into a decimal number. Empty cells and
// unparseable text report failure, never zero.
func CoerceDecimal(c Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case CellNumber:
		return c.Number, true
	case CellText:
		return parseNumber(c.Raw)
	default:
		return decimal.Decimal{}, false
	}
}

// CoerceDate converts a cell into a calendar date. Native date cells pass
// through; text walks the layout ladder; numeric cells are treated as compact
// YYYYMMDD values or Excel serial dates.
func CoerceDate(c Cell) (time.Time, bool) {
	switch c.Kind {
	case CellDate:
		return c.Date, true
	case CellText:
		return parseDateText(c.Raw)
	case CellNumber:
		return dateFromNumber(c.Number)
	default:
		return time.Time{}, false
	}
}

// CoerceText returns the cell's trimmed text, truncated to maxLen when
// maxLen > 0. Empty cells map to "".
func CoerceText(c Cell, maxLen int) string {
	if c.Kind == CellEmpty {
		return ""
	}
	s := c.Raw
	if c.Kind == CellNumber {
		// Re-render so "1.0011910139E+10" style source text comes out as a
		// plain integer string.
		s = c.Number.String()
	}
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func parseNumber(s string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseDateText(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Excel stores dates as day counts from 1899-12-30. Serials between these
// bounds cover 1927..2117, comfortably outside any plausible plain number in
// a date column.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func dateFromNumber(n decimal.Decimal) (time.Time, bool) {
	if !n.Equal(n.Truncate(0)) {
		return time.Time{}, false
	}
	v := n.IntPart()
	// Compact YYYYMMDD, e.g. 20240131.
	if v >= 19000101 && v <= 21991231 {
		if t, err := time.Parse("20060102", n.String()); err == nil {
			return t, true
		}
	}
	if v >= 10000 && v <= 80000 {
		return excelEpoch.AddDate(0, 0, int(v)), true
	}
	return time.Time{}, false
}

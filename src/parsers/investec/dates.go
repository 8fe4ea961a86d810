package investec

import (
	"regexp"
	"strings"
	"time"

	"github.com/username/shareledger/src/xlsx"
)

var (
	// TransactionHistory-All-YYYYMMDD-YYYYMMDD.xlsx
	reFilenameWindow = regexp.MustCompile(`(\d{8})-(\d{8})`)
	// Holdings-YYYYMMDD.xlsx
	reFilenameDate = regexp.MustCompile(`(\d{8})`)
)

// How deep into a sheet the boilerplate scans look. Broker letterhead never
// runs longer than this.
const boilerplateScanDepth = 20

func dateWindowFromFilename(filename string) (from, to time.Time, ok bool) {
	m := reFilenameWindow.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	from, errFrom := time.Parse("20060102", m[1])
	to, errTo := time.Parse("20060102", m[2])
	if errFrom != nil || errTo != nil {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// dateWindowFromGrid scans the boilerplate rows for "from ... date" and
// "to ... date" labels and coerces the date cells next to them. Either bound
// may come back zero when the sheet carries no such label.
func dateWindowFromGrid(g *xlsx.Grid) (from, to time.Time) {
	for i := 0; i < g.RowCount() && i <= boilerplateScanDepth; i++ {
		text := strings.ToLower(g.RowText(i))

		if strings.Contains(text, "from") && strings.Contains(text, "date") {
			for _, c := range g.Rows[i] {
				d, ok := xlsx.CoerceDate(c)
				if !ok {
					continue
				}
				if from.IsZero() {
					from = d
				} else if to.IsZero() && d.After(from) {
					to = d
				}
			}
		}
		if strings.Contains(text, "to") && strings.Contains(text, "date") {
			for _, c := range g.Rows[i] {
				d, ok := xlsx.CoerceDate(c)
				if !ok {
					continue
				}
				if to.IsZero() || d.After(to) {
					to = d
				}
			}
		}
		if !from.IsZero() && !to.IsZero() {
			break
		}
	}
	return from, to
}

func reportDateFromFilename(filename string) (time.Time, bool) {
	m := reFilenameDate.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// reportDateNear looks for any coercible date cell in the rows surrounding
// the report marker.
func reportDateNear(g *xlsx.Grid, reportRow int) (time.Time, bool) {
	start := reportRow - 5
	if start < 0 {
		start = 0
	}
	end := reportRow + 5
	if end > g.RowCount() {
		end = g.RowCount()
	}
	for i := start; i < end; i++ {
		for _, c := range g.Rows[i] {
			if d, ok := xlsx.CoerceDate(c); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Grid is the untyped contents of the first worksheet of an uploaded
// spreadsheet, one classified Cell per source cell. Rows may be ragged.
type Grid struct {
	Rows [][]Cell
}

// ReadGrid opens a spreadsheet from r and classifies every cell of its first
// sheet. Spreadsheets the library cannot open (corrupt files, wrong format
// behind a valid extension) surface as an error.
func ReadGrid(r io.Reader) (*Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return &Grid{}, nil
	}
	rawRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	rows := make([][]Cell, len(rawRows))
	for i, rawRow := range rawRows {
		cells := make([]Cell, len(rawRow))
		for j, raw := range rawRow {
			cells[j] = Classify(raw)
		}
		rows[i] = cells
	}
	return &Grid{Rows: rows}, nil
}

// RowCount reports the number of rows read from the sheet.
func (g *Grid) RowCount() int { return len(g.Rows) }

// CellAt returns the cell at (row, col), or an empty cell when the position
// falls outside the (possibly ragged) grid.
func (g *Grid) CellAt(row, col int) Cell {
	if row < 0 || row >= len(g.Rows) {
		return Cell{Kind: CellEmpty}
	}
	r := g.Rows[row]
	if col < 0 || col >= len(r) {
		return Cell{Kind: CellEmpty}
	}
	return r[col]
}

// RowText joins the non-empty cells of a row into one lowercased
// space-separated string, the form the header keyword rules match against.
func (g *Grid) RowText(row int) string {
	if row < 0 || row >= len(g.Rows) {
		return ""
	}
	var parts []string
	for _, c := range g.Rows[row] {
		if c.Kind != CellEmpty {
			parts = append(parts, strings.ToLower(c.Raw))
		}
	}
	return strings.Join(parts, " ")
}

// LocateHeader scans rows from start looking for the first row whose joined
// text contains every keyword of at least one keyword set. maxDepth bounds
// the scan when positive; zero scans to the end of the sheet. Returns the row
// index and whether a header was found.
func (g *Grid) LocateHeader(start, maxDepth int, keywordSets ...[]string) (int, bool) {
	for i := start; i < len(g.Rows); i++ {
		if maxDepth > 0 && i-start >= maxDepth {
			break
		}
		text := g.RowText(i)
		for _, set := range keywordSets {
			if containsAll(text, set) {
				return i, true
			}
		}
	}
	return 0, false
}

func containsAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

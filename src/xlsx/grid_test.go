package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestReadGrid(t *testing.T) {
	r := buildWorkbook(t, [][]interface{}{
		{"Date", "Account Number", "Description"},
		{"2024-01-15", "10011910139", "Buy 400 SHP at 1,192 Cents"},
		{"", "", ""},
	})

	grid, err := ReadGrid(r)
	require.NoError(t, err)
	require.GreaterOrEqual(t, grid.RowCount(), 2)

	assert.Equal(t, CellText, grid.CellAt(0, 0).Kind)
	assert.Equal(t, "Date", grid.CellAt(0, 0).Raw)

	dateCell := grid.CellAt(1, 0)
	_, ok := CoerceDate(dateCell)
	assert.True(t, ok, "date column should coerce, kind=%v raw=%q", dateCell.Kind, dateCell.Raw)

	assert.Equal(t, CellNumber, grid.CellAt(1, 1).Kind)
	assert.Equal(t, CellText, grid.CellAt(1, 2).Kind)
}

func TestReadGrid_NotASpreadsheet(t *testing.T) {
	_, err := ReadGrid(strings.NewReader("this is not a zip archive"))
	assert.Error(t, err)
}

func TestCellAt_OutOfBounds(t *testing.T) {
	g := &Grid{Rows: [][]Cell{{Classify("a")}}}
	assert.Equal(t, CellEmpty, g.CellAt(-1, 0).Kind)
	assert.Equal(t, CellEmpty, g.CellAt(5, 0).Kind)
	assert.Equal(t, CellEmpty, g.CellAt(0, 9).Kind)
}

func TestRowText(t *testing.T) {
	g := &Grid{Rows: [][]Cell{
		{Classify("Instrument Description"), Classify(""), Classify("Total Quantity")},
	}}
	assert.Equal(t, "instrument description total quantity", g.RowText(0))
	assert.Equal(t, "", g.RowText(3))
}

func TestLocateHeader(t *testing.T) {
	g := &Grid{Rows: [][]Cell{
		{Classify("Investec Wealth & Investment")},
		{Classify("Portfolio Holdings Report")},
		{Classify("Instrument Description"), Classify("Total Quantity"), Classify("Currency")},
	}}

	row, found := g.LocateHeader(0, 0, []string{"portfolio", "holdings", "report"})
	require.True(t, found)
	assert.Equal(t, 1, row)

	row, found = g.LocateHeader(row+1, 0, []string{"instrument description", "total quantity"})
	require.True(t, found)
	assert.Equal(t, 2, row)

	// maxDepth bounds the scan.
	_, found = g.LocateHeader(0, 1, []string{"instrument description"})
	assert.False(t, found)

	_, found = g.LocateHeader(0, 0, []string{"no such header"})
	assert.False(t, found)
}

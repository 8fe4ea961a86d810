package xlsx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind CellKind
	}{
		{"empty string", "", CellEmpty},
		{"whitespace only", "   ", CellEmpty},
		{"nan marker", "nan", CellEmpty},
		{"NaN marker uppercase", "NaN", CellEmpty},
		{"null marker", "null", CellEmpty},
		{"n/a marker", "N/A", CellEmpty},
		{"dash marker", "-", CellEmpty},
		{"integer", "1192", CellNumber},
		{"thousands separator", "1,192.50", CellNumber},
		{"negative", "-54.30", CellNumber},
		{"iso date", "2024-01-15", CellDate},
		{"slash date", "31/01/2024", CellDate},
		{"plain text", "NEDBANK", CellText},
		{"spaced letters", "A V I", CellText},
		{"description", "Buy 400 SHP at 1,192 Cents", CellText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.raw).Kind)
		})
	}
}

func TestClassify_NumberValue(t *testing.T) {
	c := Classify("1,192.50")
	require.Equal(t, CellNumber, c.Kind)
	assert.True(t, c.Number.Equal(decimal.RequireFromString("1192.50")), "got %s", c.Number)
}

func TestCoerceDecimal(t *testing.T) {
	d, ok := CoerceDecimal(Classify("12 345.67"))
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("12345.67")))

	_, ok = CoerceDecimal(Classify(""))
	assert.False(t, ok, "empty cell must not coerce to zero")

	_, ok = CoerceDecimal(Classify("not a number"))
	assert.False(t, ok)

	// Numeric text that Classify tagged as a date is still not a decimal.
	_, ok = CoerceDecimal(Classify("2024-01-15"))
	assert.False(t, ok)
}

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"iso", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"day first slash", "31/01/2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"single digit slash", "2/1/2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"compact text", "20240131", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"long form", "15 January 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := CoerceDate(Classify(tt.raw))
			require.True(t, ok)
			assert.True(t, d.Equal(tt.want), "got %s", d)
		})
	}

	_, ok := CoerceDate(Classify(""))
	assert.False(t, ok)
	_, ok = CoerceDate(Classify("NEDBANK"))
	assert.False(t, ok)
}

func TestCoerceDate_Numeric(t *testing.T) {
	// Compact YYYYMMDD arrives as a number cell when the column is unstyled.
	d, ok := CoerceDate(Classify("20240131"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), d)

	// Excel serial: 45000 days after 1899-12-30.
	d, ok = CoerceDate(Cell{Kind: CellNumber, Raw: "45000", Number: decimal.NewFromInt(45000)})
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), d)

	// Small plain numbers are quantities, not dates.
	_, ok = CoerceDate(Cell{Kind: CellNumber, Raw: "400", Number: decimal.NewFromInt(400)})
	assert.False(t, ok)
}

func TestCoerceText(t *testing.T) {
	assert.Equal(t, "", CoerceText(Classify("nan"), 0))
	assert.Equal(t, "NEDBANK", CoerceText(Classify("  NEDBANK  "), 0))
	assert.Equal(t, "NED", CoerceText(Classify("NEDBANK"), 3))

	// Account numbers exported in scientific notation come back as plain
	// integer strings.
	assert.Equal(t, "10011910139", CoerceText(Classify("1.0011910139E+10"), 0))
}

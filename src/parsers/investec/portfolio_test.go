package investec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/shareledger/src/models"
)

var portfolioHeader = []string{
	"Instrument Description", "Total Quantity", "Currency", "Unit Cost (net)",
	"Total Cost", "Price", "Total Value", "Exchange Rate", "Move %",
	"Portfolio %", "Profit/Loss", "Annual Income (R)",
}

func TestPortfolioParser_Parse(t *testing.T) {
	grid := gridFrom(
		[]string{"Investec Wealth & Investment"},
		[]string{"Portfolio Holdings Report"},
		portfolioHeader,
		[]string{"Equities"},
		[]string{"ABSA GROUP LIMITED (ABG)", "100", "ZAR", "150.00", "15000.00", "160.00", "16000.00", "", "2.5", "10.0", "1000.00", "500.00"},
		[]string{"SETTLEMENT ACCOUNT", "0", "ZAR", "0", "0", "0", "0"},
		[]string{"NEDBANK GROUP LTD (NED)", "50", "ZAR", "abc", "9000.00", "200.00", "10000.00"},
		[]string{"TOTAL", "", "", "", "", "", "26000.00"},
	)

	result, err := NewPortfolioParser().Parse(grid, "Holdings-20240131.xlsx")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), result.ReportDate)
	assert.Equal(t, models.ReconcileMonth, result.Reconciliation.Kind)
	assert.Equal(t, 2024, result.Reconciliation.Year)
	assert.Equal(t, 1, result.Reconciliation.Month)

	// Section header, zero-quantity settlement line and the totals row are
	// expected noise; the unparseable unit cost is a diagnostic.
	require.Len(t, result.Holdings, 1)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "Row 7: Invalid unit cost: abc", result.Diagnostics[0])

	h := result.Holdings[0]
	assert.Equal(t, "ABSA GROUP LIMITED", h.Company)
	assert.Equal(t, "ABG", h.ShareCode)
	assert.Equal(t, "ZAR", h.Currency)
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, h.UnitCost.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, h.TotalValue.Equal(decimal.RequireFromString("16000.00")))
	assert.Equal(t, 2024, h.Year)
	assert.Equal(t, 1, h.Month)

	assert.False(t, h.ExchangeRate.Valid, "blank optional column stays null")
	require.True(t, h.MovePercent.Valid)
	assert.True(t, h.MovePercent.Decimal.Equal(decimal.RequireFromString("2.5")))
	require.True(t, h.AnnualIncome.Valid)
	assert.True(t, h.AnnualIncome.Decimal.Equal(decimal.RequireFromString("500.00")))
}

func TestPortfolioParser_DefaultCurrency(t *testing.T) {
	grid := gridFrom(
		[]string{"Portfolio Holdings Report"},
		portfolioHeader,
		[]string{"ABSA GROUP LIMITED (ABG)", "100", "", "150.00", "15000.00", "160.00", "16000.00"},
	)
	result, err := NewPortfolioParser().Parse(grid, "Holdings-20240131.xlsx")
	require.NoError(t, err)
	require.Len(t, result.Holdings, 1)
	assert.Equal(t, "ZAR", result.Holdings[0].Currency)
}

func TestPortfolioParser_StructuralFailures(t *testing.T) {
	t.Run("no report marker", func(t *testing.T) {
		grid := gridFrom([]string{"just some sheet"}, portfolioHeader)
		_, err := NewPortfolioParser().Parse(grid, "Holdings-20240131.xlsx")
		assert.ErrorIs(t, err, ErrReportMarkerNotFound)
	})

	t.Run("no report date", func(t *testing.T) {
		grid := gridFrom(
			[]string{"Portfolio Holdings Report"},
			portfolioHeader,
		)
		_, err := NewPortfolioParser().Parse(grid, "holdings.xlsx")
		assert.ErrorIs(t, err, ErrReportDateNotFound)
	})

	t.Run("no header row", func(t *testing.T) {
		grid := gridFrom(
			[]string{"Portfolio Holdings Report"},
			[]string{"nothing that looks like a header"},
		)
		_, err := NewPortfolioParser().Parse(grid, "Holdings-20240131.xlsx")
		assert.ErrorIs(t, err, ErrHeaderNotFound)
	})

	t.Run("missing mandatory columns", func(t *testing.T) {
		grid := gridFrom(
			[]string{"Portfolio Holdings Report"},
			[]string{"Instrument Description", "Total Quantity"},
		)
		_, err := NewPortfolioParser().Parse(grid, "Holdings-20240131.xlsx")
		require.ErrorIs(t, err, ErrMissingColumns)
		assert.Contains(t, err.Error(), "currency")
		assert.Contains(t, err.Error(), "price")
	})

	t.Run("empty sheet", func(t *testing.T) {
		_, err := NewPortfolioParser().Parse(gridFrom(), "Holdings-20240131.xlsx")
		assert.ErrorIs(t, err, ErrEmptySheet)
	})
}

func TestPortfolioParser_ReportDateFromSheet(t *testing.T) {
	grid := gridFrom(
		[]string{"Portfolio Holdings Report"},
		[]string{"As at", "2024-02-29"},
		portfolioHeader,
	)
	result, err := NewPortfolioParser().Parse(grid, "holdings.xlsx")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), result.ReportDate)
	assert.Equal(t, 2, result.Reconciliation.Month)
}

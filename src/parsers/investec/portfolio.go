package investec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/shareledger/src/models"
	"github.com/username/shareledger/src/xlsx"
)

// PortfolioParser extracts holding lines from a portfolio holdings report.
// One file is one reporting month; its batch supersedes everything stored for
// that (year, month).
type PortfolioParser struct{}

func NewPortfolioParser() *PortfolioParser {
	return &PortfolioParser{}
}

// "ABSA GROUP LIMITED (ABG)" -> company + share code.
var reInstrument = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)\s*$`)

// Portfolio header cells are matched by prefix: the broker wraps long titles
// ("Unit Cost (net)", "Annual Income (R)") across lines, so only the leading
// word(s) are stable.
var portfolioColumns = []struct {
	field    string
	prefix   string
	required bool
}{
	{"instrument", "instrument description", true},
	{"quantity", "total quantity", true},
	{"currency", "currency", true},
	{"total_cost", "total cost", true},
	{"total_value", "total value", true},
	{"unit_cost", "unit", true},
	{"price", "price", true},
	{"exchange_rate", "exchange", false},
	{"move_percent", "move", false},
	{"portfolio_percent", "portfolio", false},
	{"profit_loss", "profit/loss", false},
	{"annual_income", "annual", false},
}

func (p *PortfolioParser) Parse(grid *xlsx.Grid, filename string) (*models.ParseResult, error) {
	if grid.RowCount() == 0 {
		return nil, ErrEmptySheet
	}

	// Header discovery is mandatory here: column positions mean nothing
	// without the report marker.
	reportRow, found := grid.LocateHeader(0, boilerplateScanDepth, []string{"portfolio", "holdings", "report"})
	if !found {
		return nil, ErrReportMarkerNotFound
	}

	reportDate, ok := reportDateFromFilename(filename)
	if !ok {
		reportDate, ok = reportDateNear(grid, reportRow)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no date in filename (YYYYMMDD) or near the report header", ErrReportDateNotFound)
	}

	headerRow, found := grid.LocateHeader(reportRow+1, 0, []string{"instrument description", "total quantity"})
	if !found {
		return nil, fmt.Errorf("%w: no row with \"Instrument Description\" and \"Total Quantity\" after the report marker", ErrHeaderNotFound)
	}

	cols, missing := mapPortfolioColumns(grid.Rows[headerRow])
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	result := &models.ParseResult{
		ReportDate: reportDate,
		Reconciliation: models.Reconciliation{
			Kind:  models.ReconcileMonth,
			Year:  reportDate.Year(),
			Month: int(reportDate.Month()),
		},
	}

	for i := headerRow + 1; i < grid.RowCount(); i++ {
		result.TotalRows++
		sheetRow := i + 1

		instrument := xlsx.CoerceText(grid.CellAt(i, cols["instrument"]), 0)
		if instrument == "" {
			continue
		}
		company, shareCode := SplitInstrument(instrument)

		// Section totals and sub-headers have no parseable nonzero quantity;
		// they are expected noise, not diagnostics.
		quantity, ok := xlsx.CoerceDecimal(grid.CellAt(i, cols["quantity"]))
		if !ok || quantity.IsZero() {
			continue
		}

		currency := xlsx.CoerceText(grid.CellAt(i, cols["currency"]), models.MaxCurrencyLen)
		if currency == "" {
			currency = "ZAR"
		}

		unitCost, ok := coerceRequired(grid, i, cols["unit_cost"], "Unit cost", sheetRow, result)
		if !ok {
			continue
		}
		totalCost, ok := coerceRequired(grid, i, cols["total_cost"], "Total cost", sheetRow, result)
		if !ok {
			continue
		}
		price, ok := coerceRequired(grid, i, cols["price"], "Price", sheetRow, result)
		if !ok {
			continue
		}
		totalValue, ok := coerceRequired(grid, i, cols["total_value"], "Total value", sheetRow, result)
		if !ok {
			continue
		}

		holding := models.PortfolioHolding{
			Company:          truncate(company, models.MaxCompanyLen),
			ShareCode:        truncate(shareCode, models.MaxShareCodeLen),
			Quantity:         quantity,
			Currency:         currency,
			UnitCost:         unitCost,
			TotalCost:        totalCost,
			Price:            price,
			TotalValue:       totalValue,
			ExchangeRate:     coerceOptional(grid, i, cols, "exchange_rate"),
			MovePercent:      coerceOptional(grid, i, cols, "move_percent"),
			PortfolioPercent: coerceOptional(grid, i, cols, "portfolio_percent"),
			ProfitLoss:       coerceOptional(grid, i, cols, "profit_loss"),
			AnnualIncome:     coerceOptional(grid, i, cols, "annual_income"),
		}
		holding.SetDate(reportDate)
		result.Holdings = append(result.Holdings, holding)
	}

	return result, nil
}

// SplitInstrument parses "Name (CODE)" into its parts. Without a
// parenthesised code the whole string is the company and the code is empty.
func SplitInstrument(instrument string) (company, shareCode string) {
	s := strings.TrimSpace(instrument)
	if m := reInstrument.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return s, ""
}

func mapPortfolioColumns(header []xlsx.Cell) (map[string]int, []string) {
	normalized := make([]string, len(header))
	for i, c := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(c.Raw))
	}
	cols := make(map[string]int)
	var missing []string
	taken := make(map[int]bool)
	for _, spec := range portfolioColumns {
		idx := -1
		for i, h := range normalized {
			if !taken[i] && strings.HasPrefix(h, spec.prefix) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			cols[spec.field] = idx
			taken[idx] = true
		} else if spec.required {
			missing = append(missing, spec.prefix)
		}
	}
	return cols, missing
}

func coerceRequired(g *xlsx.Grid, row, col int, label string, sheetRow int, result *models.ParseResult) (decimal.Decimal, bool) {
	cell := g.CellAt(row, col)
	if cell.Kind == xlsx.CellEmpty {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: %s is missing", sheetRow, label))
		return decimal.Decimal{}, false
	}
	d, ok := xlsx.CoerceDecimal(cell)
	if !ok {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Invalid %s: %s", sheetRow, strings.ToLower(label), cell.Raw))
		return decimal.Decimal{}, false
	}
	return d, true
}

func coerceOptional(g *xlsx.Grid, row int, cols map[string]int, field string) decimal.NullDecimal {
	col, ok := cols[field]
	if !ok {
		return decimal.NullDecimal{}
	}
	d, ok := xlsx.CoerceDecimal(g.CellAt(row, col))
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

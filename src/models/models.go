package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field widths enforced during parsing. Values longer than these are
// truncated, never rejected.
const (
	MaxAccountNumberLen = 50
	MaxDescriptionLen   = 255
	MaxShareNameLen     = 100
	MaxTypeLen          = 50
	MaxCompanyLen       = 100
	MaxShareCodeLen     = 20
	MaxCurrencyLen      = 10
)

// Transaction types that describe account-level ledger entries. These never
// carry a share name, whatever the description heuristics produced.
var AccountTransactionTypes = map[string]bool{
	"VAT":                    true,
	"Fee":                    true,
	"Interest":               true,
	"Broker Fee":             true,
	"Capital Reduction":      true,
	"Bank Transfer":          true,
	"Inter Account Transfer": true,
	"Transfer":               true,
}

// Transaction is one brokerage ledger line imported from a transaction
// history export.
type Transaction struct {
	ID            int64           `json:"id"`
	Date          time.Time       `json:"date"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	Day           int             `json:"day"`
	AccountNumber string          `json:"account_number"`
	Description   string          `json:"description"`
	ShareName     string          `json:"share_name"` // empty for account-level entries
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"` // 4 decimal places
	Value         decimal.Decimal `json:"value"`    // 2 decimal places

	// Only populated for Buy/Sell rows whose description carries an
	// "at N Cents" price.
	ValuePerShare   decimal.NullDecimal `json:"value_per_share"`
	ValueCalculated decimal.NullDecimal `json:"value_calculated"`

	// Trailing-12-month dividend sum, back-filled by the performance
	// recompute, never by the parser.
	DividendTTM decimal.NullDecimal `json:"dividend_ttm"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetDate stores the date and its derived year/month/day columns.
func (t *Transaction) SetDate(d time.Time) {
	t.Date = d
	t.Year = d.Year()
	t.Month = int(d.Month())
	t.Day = d.Day()
}

// PortfolioHolding is one holding line from a portfolio holdings report,
// valid as of the report date.
type PortfolioHolding struct {
	ID        int64           `json:"id"`
	Date      time.Time       `json:"date"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Day        int             `json:"day"`
	Company    string          `json:"company"`
	ShareCode  string          `json:"share_code"` // empty when the instrument has no "(CODE)" suffix
	Quantity   decimal.Decimal `json:"quantity"`
	Currency   string          `json:"currency"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`

	ExchangeRate     decimal.NullDecimal `json:"exchange_rate"`
	MovePercent      decimal.NullDecimal `json:"move_percent"`
	PortfolioPercent decimal.NullDecimal `json:"portfolio_percent"`
	ProfitLoss       decimal.NullDecimal `json:"profit_loss"`
	AnnualIncome     decimal.NullDecimal `json:"annual_income"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetDate stores the date and its derived year/month/day columns.
func (p *PortfolioHolding) SetDate(d time.Time) {
	p.Date = d
	p.Year = d.Year()
	p.Month = int(d.Month())
	p.Day = d.Day()
}

// ShareNameMapping relates a transaction's free-text share name to the
// portfolio's canonical company and share code. Share name is the unique key.
type ShareNameMapping struct {
	ID        int64     `json:"id"`
	ShareName string    `json:"share_name"`
	Company   string    `json:"company"`
	ShareCode string    `json:"share_code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthlyPerformance is the derived dividend/yield reporting row, keyed by
// (share name, month-end date, dividend type).
type MonthlyPerformance struct {
	ID            int64               `json:"id"`
	ShareName     string              `json:"share_name"`
	Date          time.Time           `json:"date"` // month-end date
	Year          int                 `json:"year"`
	Month         int                 `json:"month"`
	DividendType  string              `json:"dividend_type"`
	Account       string              `json:"account"`
	DividendTTM   decimal.Decimal     `json:"dividend_ttm"`
	ClosingPrice  decimal.NullDecimal `json:"closing_price"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	MarketValue   decimal.NullDecimal `json:"market_value"`
	DividendYield decimal.NullDecimal `json:"dividend_yield"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

package services

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/shareledger/src/database"
	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/models"
)

// dividendTypes are the transaction types that accrue into the trailing
// twelve month dividend sums.
var dividendTypes = []string{"Dividend", "Foreign Dividend", "Special Dividend"}

type performanceServiceImpl struct {
	reportCache *cache.Cache
}

func NewPerformanceService(reportCache *cache.Cache) PerformanceService {
	return &performanceServiceImpl{reportCache: reportCache}
}

type dividendRow struct {
	id      int64
	share   string
	divType string
	account string
	date    time.Time
	value   decimal.Decimal
}

type monthKey struct {
	share   string
	divType string
	year    int
	month   int
}

type holdingSnapshot struct {
	price      decimal.Decimal
	quantity   decimal.Decimal
	totalValue decimal.Decimal
}

// Recompute rebuilds the whole share_monthly_performance table from the
// stored dividend transactions and portfolio holdings, and back-fills each
// dividend transaction's dividend_ttm with the sum as of its own month.
func (s *performanceServiceImpl) Recompute() (*RecomputeSummary, error) {
	startTime := time.Now()
	logger.L.Info("Performance recompute START")

	divs, err := loadDividendRows()
	if err != nil {
		return nil, err
	}
	mappings, err := loadShareCodes()
	if err != nil {
		return nil, err
	}
	holdings, err := loadHoldingSnapshots()
	if err != nil {
		return nil, err
	}

	// Every (share, dividend type, month) that saw a dividend gets a row.
	byGroup := make(map[monthKey][]dividendRow)
	accounts := make(map[monthKey]string)
	sharesSeen := make(map[string]bool)
	for _, d := range divs {
		k := monthKey{share: d.share, divType: d.divType, year: d.date.Year(), month: int(d.date.Month())}
		byGroup[k] = append(byGroup[k], d)
		if d.account != "" {
			accounts[k] = d.account
		}
		sharesSeen[d.share] = true
	}

	keys := make([]monthKey, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.share != b.share {
			return a.share < b.share
		}
		if a.divType != b.divType {
			return a.divType < b.divType
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: error beginning database transaction: %v", ErrCommitFailed, err)
	}
	defer dbTx.Rollback()

	upsert, err := dbTx.Prepare(`INSERT INTO share_monthly_performance
			(share_name, date, year, month, dividend_type, account, dividend_ttm, closing_price, quantity, market_value, dividend_yield)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(share_name, date, dividend_type) DO UPDATE SET
			year = excluded.year,
			month = excluded.month,
			account = excluded.account,
			dividend_ttm = excluded.dividend_ttm,
			closing_price = excluded.closing_price,
			quantity = excluded.quantity,
			market_value = excluded.market_value,
			dividend_yield = excluded.dividend_yield,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return nil, fmt.Errorf("%w: error preparing performance upsert: %v", ErrCommitFailed, err)
	}
	defer upsert.Close()

	summary := &RecomputeSummary{Shares: len(sharesSeen)}
	for _, k := range keys {
		monthEnd := endOfMonth(k.year, k.month)
		ttm := trailingSum(divs, k.share, k.divType, monthEnd)

		perf := models.MonthlyPerformance{
			ShareName:    k.share,
			Year:         k.year,
			Month:        k.month,
			DividendType: k.divType,
			Account:      accounts[k],
			DividendTTM:  ttm,
		}
		perf.Date = monthEnd

		if snap, ok := holdings[holdingKey(mappings[k.share], k.year, k.month)]; ok && mappings[k.share] != "" {
			perf.ClosingPrice = decimal.NullDecimal{Decimal: snap.price, Valid: true}
			perf.Quantity = decimal.NullDecimal{Decimal: snap.quantity, Valid: true}
			perf.MarketValue = decimal.NullDecimal{Decimal: snap.totalValue, Valid: true}
			if !snap.totalValue.IsZero() {
				perf.DividendYield = decimal.NullDecimal{Decimal: ttm.Div(snap.totalValue).Round(6), Valid: true}
			}
		}

		_, err := upsert.Exec(
			perf.ShareName, perf.Date.Format(dateFormat), perf.Year, perf.Month,
			perf.DividendType, perf.Account, perf.DividendTTM.StringFixed(2),
			nullDecArg(perf.ClosingPrice, 4), nullDecArg(perf.Quantity, 4),
			nullDecArg(perf.MarketValue, 2), nullDecArg(perf.DividendYield, 6),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: error upserting performance row (%s %s %d-%02d): %v",
				ErrCommitFailed, k.share, k.divType, k.year, k.month, err)
		}
		summary.Rows++
	}

	backfill, err := dbTx.Prepare(`UPDATE transactions SET dividend_ttm = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("%w: error preparing dividend back-fill: %v", ErrCommitFailed, err)
	}
	defer backfill.Close()

	for _, d := range divs {
		monthEnd := endOfMonth(d.date.Year(), int(d.date.Month()))
		ttm := trailingSum(divs, d.share, d.divType, monthEnd)
		if _, err := backfill.Exec(ttm.StringFixed(2), d.id); err != nil {
			return nil, fmt.Errorf("%w: error back-filling transaction %d: %v", ErrCommitFailed, d.id, err)
		}
		summary.TransactionsBackfilled++
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: error committing performance recompute: %v", ErrCommitFailed, err)
	}

	if s.reportCache != nil {
		s.reportCache.Flush()
	}

	logger.L.Info("Performance recompute END", "rows", summary.Rows, "shares", summary.Shares,
		"backfilled", summary.TransactionsBackfilled, "duration", time.Since(startTime))
	return summary, nil
}

func (s *performanceServiceImpl) GetPerformance(filter PerformanceFilter) ([]models.MonthlyPerformance, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.ShareName != "" {
		where += " AND share_name LIKE ?"
		args = append(args, "%"+filter.ShareName+"%")
	}
	if filter.Year > 0 {
		where += " AND year = ?"
		args = append(args, filter.Year)
	}
	if filter.Month > 0 {
		where += " AND month = ?"
		args = append(args, filter.Month)
	}

	query := `SELECT id, share_name, date, year, month, dividend_type, account,
			dividend_ttm, closing_price, quantity, market_value, dividend_yield,
			created_at, updated_at
		FROM share_monthly_performance` + where + ` ORDER BY date DESC, share_name, dividend_type`
	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying performance: %w", err)
	}
	defer rows.Close()

	results := []models.MonthlyPerformance{}
	for rows.Next() {
		var p models.MonthlyPerformance
		var date string
		var ttm, closingPrice, quantity, marketValue, yield sql.NullString
		var createdAt, updatedAt sql.NullString
		err := rows.Scan(&p.ID, &p.ShareName, &date, &p.Year, &p.Month, &p.DividendType, &p.Account,
			&ttm, &closingPrice, &quantity, &marketValue, &yield, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning performance row: %w", err)
		}
		p.Date = parseDay(date)
		if p.DividendTTM, err = scanDec(ttm); err != nil {
			return nil, fmt.Errorf("error scanning dividend_ttm: %w", err)
		}
		if p.ClosingPrice, err = scanNullDec(closingPrice); err != nil {
			return nil, fmt.Errorf("error scanning closing_price: %w", err)
		}
		if p.Quantity, err = scanNullDec(quantity); err != nil {
			return nil, fmt.Errorf("error scanning quantity: %w", err)
		}
		if p.MarketValue, err = scanNullDec(marketValue); err != nil {
			return nil, fmt.Errorf("error scanning market_value: %w", err)
		}
		if p.DividendYield, err = scanNullDec(yield); err != nil {
			return nil, fmt.Errorf("error scanning dividend_yield: %w", err)
		}
		p.CreatedAt = parseTimestamp(createdAt)
		p.UpdatedAt = parseTimestamp(updatedAt)
		results = append(results, p)
	}
	return results, rows.Err()
}

// endOfMonth is the last calendar day of the given month. Day zero of the
// following month normalizes to it.
func endOfMonth(year, month int) time.Time {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
}

// trailingSum adds the share's dividends of one type over the twelve months
// ending at monthEnd, both bounds inclusive of the month they fall in.
func trailingSum(divs []dividendRow, share, divType string, monthEnd time.Time) decimal.Decimal {
	windowStart := monthEnd.AddDate(-1, 0, 1)
	sum := decimal.Zero
	for _, d := range divs {
		if d.share != share || d.divType != divType {
			continue
		}
		if d.date.Before(windowStart) || d.date.After(monthEnd) {
			continue
		}
		sum = sum.Add(d.value)
	}
	return sum
}

func holdingKey(shareCode string, year, month int) string {
	return fmt.Sprintf("%s|%d|%d", shareCode, year, month)
}

func loadDividendRows() ([]dividendRow, error) {
	rows, err := database.DB.Query(`SELECT id, share_name, type, account_number, date, value
		FROM transactions
		WHERE type IN (?, ?, ?) AND share_name <> ''
		ORDER BY share_name, type, date`,
		dividendTypes[0], dividendTypes[1], dividendTypes[2])
	if err != nil {
		return nil, fmt.Errorf("error querying dividend transactions: %w", err)
	}
	defer rows.Close()

	var divs []dividendRow
	for rows.Next() {
		var d dividendRow
		var date string
		var value sql.NullString
		if err := rows.Scan(&d.id, &d.share, &d.divType, &d.account, &date, &value); err != nil {
			return nil, fmt.Errorf("error scanning dividend transaction: %w", err)
		}
		d.date = parseDay(date)
		if d.value, err = scanDec(value); err != nil {
			return nil, fmt.Errorf("error scanning dividend value: %w", err)
		}
		divs = append(divs, d)
	}
	return divs, rows.Err()
}

func loadShareCodes() (map[string]string, error) {
	rows, err := database.DB.Query(`SELECT share_name, share_code FROM share_name_mappings WHERE share_code <> ''`)
	if err != nil {
		return nil, fmt.Errorf("error querying share code mappings: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]string)
	for rows.Next() {
		var name, code string
		if err := rows.Scan(&name, &code); err != nil {
			return nil, fmt.Errorf("error scanning mapping: %w", err)
		}
		codes[name] = code
	}
	return codes, rows.Err()
}

func loadHoldingSnapshots() (map[string]holdingSnapshot, error) {
	rows, err := database.DB.Query(`SELECT share_code, year, month, price, quantity, total_value
		FROM portfolio_holdings WHERE share_code <> ''`)
	if err != nil {
		return nil, fmt.Errorf("error querying holding snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make(map[string]holdingSnapshot)
	for rows.Next() {
		var code string
		var year, month int
		var price, quantity, totalValue sql.NullString
		if err := rows.Scan(&code, &year, &month, &price, &quantity, &totalValue); err != nil {
			return nil, fmt.Errorf("error scanning holding snapshot: %w", err)
		}
		var snap holdingSnapshot
		var convErr error
		if snap.price, convErr = scanDec(price); convErr != nil {
			return nil, fmt.Errorf("error scanning holding price: %w", convErr)
		}
		if snap.quantity, convErr = scanDec(quantity); convErr != nil {
			return nil, fmt.Errorf("error scanning holding quantity: %w", convErr)
		}
		if snap.totalValue, convErr = scanDec(totalValue); convErr != nil {
			return nil, fmt.Errorf("error scanning holding total value: %w", convErr)
		}
		snaps[holdingKey(code, year, month)] = snap
	}
	return snaps, rows.Err()
}

package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/shareledger/src/models"
)

// nullDecArg renders an optional decimal for storage, or nil when absent.
func nullDecArg(nd decimal.NullDecimal, places int32) interface{} {
	if !nd.Valid {
		return nil
	}
	return nd.Decimal.StringFixed(places)
}

// parseDay reads a stored YYYY-MM-DD date column. Stored dates always come
// from time.Format, so a failure here means a corrupted row; it scans as the
// zero time rather than aborting the whole read.
func parseDay(s string) time.Time {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimestamp handles the SQLite CURRENT_TIMESTAMP column formats.
func parseTimestamp(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

func scanDec(ns sql.NullString) (decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(ns.String)
}

func scanNullDec(ns sql.NullString) (decimal.NullDecimal, error) {
	if !ns.Valid || ns.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var tx models.Transaction
	var date string
	var quantity, value, valuePerShare, valueCalculated, dividendTTM sql.NullString
	var createdAt, updatedAt sql.NullString
	err := rows.Scan(&tx.ID, &date, &tx.Year, &tx.Month, &tx.Day,
		&tx.AccountNumber, &tx.Description, &tx.ShareName, &tx.Type,
		&quantity, &value, &valuePerShare, &valueCalculated, &dividendTTM,
		&createdAt, &updatedAt)
	if err != nil {
		return tx, fmt.Errorf("error scanning transaction: %w", err)
	}
	tx.Date = parseDay(date)
	if tx.Quantity, err = scanDec(quantity); err != nil {
		return tx, fmt.Errorf("error scanning transaction quantity: %w", err)
	}
	if tx.Value, err = scanDec(value); err != nil {
		return tx, fmt.Errorf("error scanning transaction value: %w", err)
	}
	if tx.ValuePerShare, err = scanNullDec(valuePerShare); err != nil {
		return tx, fmt.Errorf("error scanning value_per_share: %w", err)
	}
	if tx.ValueCalculated, err = scanNullDec(valueCalculated); err != nil {
		return tx, fmt.Errorf("error scanning value_calculated: %w", err)
	}
	if tx.DividendTTM, err = scanNullDec(dividendTTM); err != nil {
		return tx, fmt.Errorf("error scanning dividend_ttm: %w", err)
	}
	tx.CreatedAt = parseTimestamp(createdAt)
	tx.UpdatedAt = parseTimestamp(updatedAt)
	return tx, nil
}

func scanHolding(rows *sql.Rows) (models.PortfolioHolding, error) {
	var h models.PortfolioHolding
	var date string
	var quantity, unitCost, totalCost, price, totalValue sql.NullString
	var exchangeRate, movePercent, portfolioPercent, profitLoss, annualIncome sql.NullString
	var createdAt, updatedAt sql.NullString
	err := rows.Scan(&h.ID, &date, &h.Year, &h.Month, &h.Day,
		&h.Company, &h.ShareCode, &quantity, &h.Currency,
		&unitCost, &totalCost, &price, &totalValue,
		&exchangeRate, &movePercent, &portfolioPercent, &profitLoss, &annualIncome,
		&createdAt, &updatedAt)
	if err != nil {
		return h, fmt.Errorf("error scanning holding: %w", err)
	}
	h.Date = parseDay(date)
	if h.Quantity, err = scanDec(quantity); err != nil {
		return h, fmt.Errorf("error scanning holding quantity: %w", err)
	}
	if h.UnitCost, err = scanDec(unitCost); err != nil {
		return h, fmt.Errorf("error scanning unit_cost: %w", err)
	}
	if h.TotalCost, err = scanDec(totalCost); err != nil {
		return h, fmt.Errorf("error scanning total_cost: %w", err)
	}
	if h.Price, err = scanDec(price); err != nil {
		return h, fmt.Errorf("error scanning price: %w", err)
	}
	if h.TotalValue, err = scanDec(totalValue); err != nil {
		return h, fmt.Errorf("error scanning total_value: %w", err)
	}
	if h.ExchangeRate, err = scanNullDec(exchangeRate); err != nil {
		return h, fmt.Errorf("error scanning exchange_rate: %w", err)
	}
	if h.MovePercent, err = scanNullDec(movePercent); err != nil {
		return h, fmt.Errorf("error scanning move_percent: %w", err)
	}
	if h.PortfolioPercent, err = scanNullDec(portfolioPercent); err != nil {
		return h, fmt.Errorf("error scanning portfolio_percent: %w", err)
	}
	if h.ProfitLoss, err = scanNullDec(profitLoss); err != nil {
		return h, fmt.Errorf("error scanning profit_loss: %w", err)
	}
	if h.AnnualIncome, err = scanNullDec(annualIncome); err != nil {
		return h, fmt.Errorf("error scanning annual_income: %w", err)
	}
	h.CreatedAt = parseTimestamp(createdAt)
	h.UpdatedAt = parseTimestamp(updatedAt)
	return h, nil
}

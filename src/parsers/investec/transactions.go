package investec

import (
	"fmt"
	"log"
	"strings"

	"github.com/username/shareledger/src/models"
	"github.com/username/shareledger/src/xlsx"
)

// TransactionParser extracts ledger lines from a transaction history export.
type TransactionParser struct{}

func NewTransactionParser() *TransactionParser {
	return &TransactionParser{}
}

// Column synonyms, matched against normalized header cells (lowercased,
// spaces and hyphens replaced by underscores).
var transactionColumns = map[string][]string{
	"date":           {"date", "transaction_date", "trade_date"},
	"account_number": {"account_number", "account", "account_no", "accountnum"},
	"description":    {"description", "desc", "details"},
	"share_name":     {"share_name", "sharename", "stock_name", "stock", "instrument", "security"},
	"type":           {"type", "action", "transaction_type", "transaction", "side"},
	"quantity":       {"quantity", "qty", "shares", "units"},
	"value":          {"value", "amount", "price", "total", "transaction_value"},
}

// type can be recovered from the description, so it is not required.
var transactionRequired = []string{"date", "account_number", "description", "share_name", "quantity", "value"}

func (p *TransactionParser) Parse(grid *xlsx.Grid, filename string) (*models.ParseResult, error) {
	if grid.RowCount() == 0 {
		return nil, ErrEmptySheet
	}

	// Broker exports put letterhead above the table; scan for the row where
	// "date" and "account" co-occur. Without one, the first row is assumed to
	// be the header.
	headerRow, found := grid.LocateHeader(0, 0, []string{"date", "account"})
	if !found {
		headerRow = 0
	}

	cols := mapColumns(grid.Rows[headerRow], transactionColumns)
	var missing []string
	for _, field := range transactionRequired {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (available: %s)",
			ErrMissingColumns, strings.Join(missing, ", "), grid.RowText(headerRow))
	}
	_, hasTypeColumn := cols["type"]

	result := &models.ParseResult{
		Reconciliation: transactionWindow(grid, filename),
	}

	for i := headerRow + 1; i < grid.RowCount(); i++ {
		result.TotalRows++
		sheetRow := i + 1 // 1-based spreadsheet position

		// A blank or unparseable date marks a stray header/footer row, not an
		// error.
		dateCell := grid.CellAt(i, cols["date"])
		date, ok := xlsx.CoerceDate(dateCell)
		if !ok {
			continue
		}

		quantityCell := grid.CellAt(i, cols["quantity"])
		if quantityCell.Kind == xlsx.CellEmpty {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Quantity is missing", sheetRow))
			continue
		}
		quantity, ok := xlsx.CoerceDecimal(quantityCell)
		if !ok {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Invalid quantity value: %s", sheetRow, quantityCell.Raw))
			continue
		}

		valueCell := grid.CellAt(i, cols["value"])
		if valueCell.Kind == xlsx.CellEmpty {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Value is missing", sheetRow))
			continue
		}
		value, ok := xlsx.CoerceDecimal(valueCell)
		if !ok {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Invalid value: %s", sheetRow, valueCell.Raw))
			continue
		}

		accountNumber := xlsx.CoerceText(grid.CellAt(i, cols["account_number"]), models.MaxAccountNumberLen)
		if accountNumber == "" {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Row %d: Missing required field (account_number)", sheetRow))
			continue
		}

		description := xlsx.CoerceText(grid.CellAt(i, cols["description"]), models.MaxDescriptionLen)
		inference := InferDescription(description)

		txType := ""
		if hasTypeColumn {
			txType = xlsx.CoerceText(grid.CellAt(i, cols["type"]), models.MaxTypeLen)
		}
		if txType == "" {
			txType = inference.Type
		}

		shareName := xlsx.CoerceText(grid.CellAt(i, cols["share_name"]), models.MaxShareNameLen)
		if shareName == "" {
			shareName = inference.ShareName
		}

		// Dividend rows often carry the share count only in the description.
		if quantity.IsZero() && inference.Quantity.Valid {
			quantity = inference.Quantity.Decimal
		}

		// Account-level invariant, enforced last: these rows never keep a
		// share name, whatever the heuristics extracted.
		if models.AccountTransactionTypes[txType] || IsAccountDescription(description) {
			shareName = ""
		}

		valuePerShare, valueCalculated := ExtractValuePerShare(description, txType, quantity)

		tx := models.Transaction{
			AccountNumber:   accountNumber,
			Description:     description,
			ShareName:       shareName,
			Type:            txType,
			Quantity:        quantity,
			Value:           value,
			ValuePerShare:   valuePerShare,
			ValueCalculated: valueCalculated,
		}
		tx.SetDate(date)
		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}

// transactionWindow determines the date range this file supersedes: filename
// first, then the sheet's from/to boilerplate. Without a window nothing is
// deleted.
func transactionWindow(grid *xlsx.Grid, filename string) models.Reconciliation {
	from, to, ok := dateWindowFromFilename(filename)
	if !ok {
		from, to = dateWindowFromGrid(grid)
	}
	if from.IsZero() || to.IsZero() {
		return models.Reconciliation{Kind: models.ReconcileNone}
	}
	if from.After(to) {
		log.Printf("Reversed date window in %q (%s > %s), swapping", filename,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
		from, to = to, from
	}
	return models.Reconciliation{Kind: models.ReconcileDateRange, FromDate: from, ToDate: to}
}

// mapColumns resolves each logical field to a column index by matching
// normalized header names against the synonym lists. First synonym hit wins.
func mapColumns(header []xlsx.Cell, synonyms map[string][]string) map[string]int {
	normalized := make([]string, len(header))
	for i, c := range header {
		normalized[i] = normalizeHeader(c.Raw)
	}
	cols := make(map[string]int)
	for field, names := range synonyms {
		for _, name := range names {
			for i, h := range normalized {
				if h == name {
					cols[field] = i
					break
				}
			}
			if _, ok := cols[field]; ok {
				break
			}
		}
	}
	return cols
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

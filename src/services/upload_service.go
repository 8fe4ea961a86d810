package services

import (
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/shareledger/src/database"
	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/models"
	"github.com/username/shareledger/src/parsers"
	"github.com/username/shareledger/src/xlsx"
)

const (
	ckCompanies  = "res_companies"
	ckShareNames = "res_share_names"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	dateFormat = "2006-01-02"
)

type uploadServiceImpl struct {
	reportCache *cache.Cache
}

func NewUploadService(reportCache *cache.Cache) UploadService {
	return &uploadServiceImpl{reportCache: reportCache}
}

// validateExtension enforces the accepted spreadsheet extensions before any
// parsing begins.
func validateExtension(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return nil
	default:
		return fmt.Errorf("%w: %q is not an Excel file (.xlsx or .xls)", ErrUnsupportedFile, filename)
	}
}

func (s *uploadServiceImpl) ProcessTransactionUpload(file io.Reader, filename string) (*UploadSummary, error) {
	batchID := uuid.New().String()
	startTime := time.Now()
	logger.L.Info("ProcessTransactionUpload START", "batchID", batchID, "filename", filename)

	result, err := s.parseFile(file, filename, parsers.ReportTransactions)
	if err != nil {
		return nil, err
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: error beginning database transaction: %v", ErrCommitFailed, err)
	}
	defer dbTx.Rollback()

	var deleted int64
	rec := result.Reconciliation
	if rec.Kind == models.ReconcileDateRange {
		res, err := dbTx.Exec(`DELETE FROM transactions WHERE date >= ? AND date <= ?`,
			rec.FromDate.Format(dateFormat), rec.ToDate.Format(dateFormat))
		if err != nil {
			return nil, fmt.Errorf("%w: error deleting superseded transactions: %v", ErrCommitFailed, err)
		}
		deleted, _ = res.RowsAffected()
	}

	stmt, err := dbTx.Prepare(`INSERT INTO transactions
		(date, year, month, day, account_number, description, share_name, type, quantity, value, value_per_share, value_calculated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("%w: error preparing insert statement: %v", ErrCommitFailed, err)
	}
	defer stmt.Close()

	for _, tx := range result.Transactions {
		_, err := stmt.Exec(
			tx.Date.Format(dateFormat), tx.Year, tx.Month, tx.Day,
			tx.AccountNumber, tx.Description, tx.ShareName, tx.Type,
			tx.Quantity.StringFixed(4), tx.Value.StringFixed(2),
			nullDecArg(tx.ValuePerShare, 2), nullDecArg(tx.ValueCalculated, 2),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: error inserting transaction (row dated %s): %v", ErrCommitFailed, tx.Date.Format(dateFormat), err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: error committing transactions: %v", ErrCommitFailed, err)
	}

	s.invalidateCaches()

	summary := &UploadSummary{
		BatchID:         batchID,
		Success:         true,
		Filename:        filename,
		DeletedPrevious: deleted,
		TotalRows:       result.TotalRows,
		Created:         len(result.Transactions),
		Errors:          len(result.Diagnostics),
		ErrorDetails:    capDiagnostics(result.Diagnostics),
	}
	summary.Message = fmt.Sprintf("Successfully imported %d transactions", summary.Created)
	if rec.Kind == models.ReconcileDateRange {
		summary.DateRange = &DateRange{
			FromDate: rec.FromDate.Format(dateFormat),
			ToDate:   rec.ToDate.Format(dateFormat),
		}
		summary.Message += fmt.Sprintf(" for date range %s to %s", summary.DateRange.FromDate, summary.DateRange.ToDate)
	}

	logger.L.Info("ProcessTransactionUpload END", "batchID", batchID,
		"created", summary.Created, "deleted", deleted, "diagnostics", summary.Errors,
		"duration", time.Since(startTime))
	return summary, nil
}

// ProcessPortfolioFiles handles a multi-file portfolio upload. Files commit
// independently: a failure in one neither rolls back the ones before it nor
// prevents attempting the ones after.
func (s *uploadServiceImpl) ProcessPortfolioFiles(files []UploadFile) *PortfolioUploadSummary {
	agg := &PortfolioUploadSummary{TotalFiles: len(files)}
	for _, f := range files {
		summary := s.processPortfolioFile(f.Reader, f.Filename)
		agg.Files = append(agg.Files, summary)
		if summary.Success {
			agg.SuccessfulFiles++
			agg.TotalCreated += summary.Created
			agg.TotalDeleted += summary.DeletedPrevious
			agg.TotalErrors += summary.Errors
		} else {
			agg.FailedFiles++
		}
	}
	agg.Success = agg.FailedFiles == 0
	return agg
}

func (s *uploadServiceImpl) processPortfolioFile(file io.Reader, filename string) *UploadSummary {
	batchID := uuid.New().String()
	summary := &UploadSummary{BatchID: batchID, Filename: filename}

	result, err := s.parseFile(file, filename, parsers.ReportPortfolio)
	if err != nil {
		logger.L.Warn("Portfolio file rejected", "batchID", batchID, "filename", filename, "error", err)
		summary.Error = err.Error()
		return summary
	}

	created, deleted, err := s.commitHoldings(result)
	if err != nil {
		logger.L.Error("Portfolio commit failed", "batchID", batchID, "filename", filename, "error", err)
		summary.Error = err.Error()
		return summary
	}

	s.invalidateCaches()

	summary.Success = true
	summary.Date = result.ReportDate.Format(dateFormat)
	summary.Year = result.ReportDate.Year()
	summary.Month = int(result.ReportDate.Month())
	summary.DeletedPrevious = deleted
	summary.TotalRows = result.TotalRows
	summary.Created = created
	summary.Errors = len(result.Diagnostics)
	summary.ErrorDetails = capDiagnostics(result.Diagnostics)
	summary.Message = fmt.Sprintf("Successfully imported %d portfolio holdings", created)

	logger.L.Info("Portfolio file committed", "batchID", batchID, "filename", filename,
		"created", created, "deleted", deleted, "diagnostics", summary.Errors)
	return summary
}

// commitHoldings replaces the reporting month's holdings and propagates
// company names onto mappings sharing the share code, all in one transaction.
func (s *uploadServiceImpl) commitHoldings(result *models.ParseResult) (created int, deleted int64, err error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: error beginning database transaction: %v", ErrCommitFailed, err)
	}
	defer dbTx.Rollback()

	rec := result.Reconciliation
	res, err := dbTx.Exec(`DELETE FROM portfolio_holdings WHERE year = ? AND month = ?`, rec.Year, rec.Month)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: error deleting superseded holdings: %v", ErrCommitFailed, err)
	}
	deleted, _ = res.RowsAffected()

	stmt, err := dbTx.Prepare(`INSERT INTO portfolio_holdings
		(date, year, month, day, company, share_code, quantity, currency, unit_cost, total_cost, price, total_value,
		 exchange_rate, move_percent, portfolio_percent, profit_loss, annual_income)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: error preparing insert statement: %v", ErrCommitFailed, err)
	}
	defer stmt.Close()

	for _, h := range result.Holdings {
		_, err := stmt.Exec(
			h.Date.Format(dateFormat), h.Year, h.Month, h.Day,
			h.Company, h.ShareCode,
			h.Quantity.StringFixed(4), h.Currency,
			h.UnitCost.StringFixed(4), h.TotalCost.StringFixed(2),
			h.Price.StringFixed(4), h.TotalValue.StringFixed(2),
			nullDecArg(h.ExchangeRate, 6), nullDecArg(h.MovePercent, 4),
			nullDecArg(h.PortfolioPercent, 4), nullDecArg(h.ProfitLoss, 2),
			nullDecArg(h.AnnualIncome, 2),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: error inserting holding (%s): %v", ErrCommitFailed, h.Company, err)
		}
		created++
	}

	// Propagation: a holding that knows both company and share code renames
	// every mapping carrying that share code.
	for _, h := range result.Holdings {
		if h.Company == "" || h.ShareCode == "" {
			continue
		}
		_, err := dbTx.Exec(`UPDATE share_name_mappings SET company = ?, updated_at = CURRENT_TIMESTAMP WHERE share_code = ?`,
			h.Company, h.ShareCode)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: error propagating company to mappings (%s): %v", ErrCommitFailed, h.ShareCode, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("%w: error committing holdings: %v", ErrCommitFailed, err)
	}
	return created, deleted, nil
}

func (s *uploadServiceImpl) ProcessMappingUpload(file io.Reader, filename string) (*UploadSummary, error) {
	batchID := uuid.New().String()
	logger.L.Info("ProcessMappingUpload START", "batchID", batchID, "filename", filename)

	result, err := s.parseFile(file, filename, parsers.ReportMapping)
	if err != nil {
		return nil, err
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: error beginning database transaction: %v", ErrCommitFailed, err)
	}
	defer dbTx.Rollback()

	var created, updated int
	for _, m := range result.Mappings {
		var id int64
		err := dbTx.QueryRow(`SELECT id FROM share_name_mappings WHERE share_name = ?`, m.ShareName).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			_, err := dbTx.Exec(`INSERT INTO share_name_mappings (share_name, company, share_code) VALUES (?, ?, ?)`,
				m.ShareName, m.Company, m.ShareCode)
			if err != nil {
				return nil, fmt.Errorf("%w: error inserting mapping (%s): %v", ErrCommitFailed, m.ShareName, err)
			}
			created++
		case err != nil:
			return nil, fmt.Errorf("%w: error looking up mapping (%s): %v", ErrCommitFailed, m.ShareName, err)
		default:
			// Overwrite only with non-empty values; a blank incoming field
			// never erases what an earlier upload established.
			_, err := dbTx.Exec(`UPDATE share_name_mappings SET
					company = CASE WHEN ? <> '' THEN ? ELSE company END,
					share_code = CASE WHEN ? <> '' THEN ? ELSE share_code END,
					updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`,
				m.Company, m.Company, m.ShareCode, m.ShareCode, id)
			if err != nil {
				return nil, fmt.Errorf("%w: error updating mapping (%s): %v", ErrCommitFailed, m.ShareName, err)
			}
			updated++
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: error committing mappings: %v", ErrCommitFailed, err)
	}

	s.invalidateCaches()

	summary := &UploadSummary{
		BatchID:      batchID,
		Success:      true,
		Filename:     filename,
		TotalRows:    result.TotalRows,
		Created:      created,
		Updated:      updated,
		Errors:       len(result.Diagnostics),
		ErrorDetails: capDiagnostics(result.Diagnostics),
		Message:      fmt.Sprintf("Successfully imported %d new mappings and updated %d existing mappings", created, updated),
	}
	logger.L.Info("ProcessMappingUpload END", "batchID", batchID, "created", created, "updated", updated)
	return summary, nil
}

// parseFile runs the shared front half of every upload: extension check,
// grid read, report parse. Everything that fails here is file-level.
func (s *uploadServiceImpl) parseFile(file io.Reader, filename, kind string) (*models.ParseResult, error) {
	if err := validateExtension(filename); err != nil {
		return nil, err
	}
	grid, err := xlsx.ReadGrid(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuralFailure, err)
	}
	parser, err := parsers.GetParser(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuralFailure, err)
	}
	result, err := parser.Parse(grid, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuralFailure, err)
	}
	return result, nil
}

// invalidateCaches drops every cached report. The simple strategy keeps the
// next read consistent with the freshly committed batch.
func (s *uploadServiceImpl) invalidateCaches() {
	if s.reportCache != nil {
		s.reportCache.Flush()
	}
}

func capDiagnostics(diags []string) []string {
	if len(diags) <= MaxErrorDetails {
		return diags
	}
	capped := make([]string, MaxErrorDetails, MaxErrorDetails+1)
	copy(capped, diags[:MaxErrorDetails])
	capped = append(capped, fmt.Sprintf("... and %d more errors", len(diags)-MaxErrorDetails))
	return capped
}

// ----- read queries -----

func (s *uploadServiceImpl) GetTransactions(filter TransactionFilter) (*TransactionPage, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.AccountNumber != "" {
		where += " AND account_number = ?"
		args = append(args, filter.AccountNumber)
	}
	if filter.ShareName != "" {
		where += " AND share_name LIKE ?"
		args = append(args, "%"+filter.ShareName+"%")
	}
	if filter.Type != "" {
		where += " AND type LIKE ?"
		args = append(args, "%"+filter.Type+"%")
	}

	var count int
	if err := database.DB.QueryRow("SELECT COUNT(*) FROM transactions"+where, args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("error counting transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, date, year, month, day, account_number, description, share_name, type,
			quantity, value, value_per_share, value_calculated, dividend_ttm, created_at, updated_at
		FROM transactions` + where + ` ORDER BY date DESC, created_at DESC LIMIT ? OFFSET ?`
	rows, err := database.DB.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	page := &TransactionPage{Count: count, Limit: limit, Offset: offset, Results: []models.Transaction{}}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, tx)
	}
	return page, rows.Err()
}

func (s *uploadServiceImpl) GetHoldings(year, month int) ([]models.PortfolioHolding, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if year > 0 {
		where += " AND year = ?"
		args = append(args, year)
	}
	if month > 0 {
		where += " AND month = ?"
		args = append(args, month)
	}
	query := `SELECT id, date, year, month, day, company, share_code, quantity, currency,
			unit_cost, total_cost, price, total_value,
			exchange_rate, move_percent, portfolio_percent, profit_loss, annual_income,
			created_at, updated_at
		FROM portfolio_holdings` + where + ` ORDER BY date DESC, company`
	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.PortfolioHolding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *uploadServiceImpl) GetMappings() ([]models.ShareNameMapping, error) {
	rows, err := database.DB.Query(`SELECT id, share_name, company, share_code, created_at, updated_at
		FROM share_name_mappings ORDER BY share_name`)
	if err != nil {
		return nil, fmt.Errorf("error querying mappings: %w", err)
	}
	defer rows.Close()

	mappings := []models.ShareNameMapping{}
	for rows.Next() {
		var m models.ShareNameMapping
		var createdAt, updatedAt sql.NullString
		if err := rows.Scan(&m.ID, &m.ShareName, &m.Company, &m.ShareCode, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("error scanning mapping: %w", err)
		}
		m.CreatedAt = parseTimestamp(createdAt)
		m.UpdatedAt = parseTimestamp(updatedAt)
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (s *uploadServiceImpl) GetCompanies() ([]CompanyExport, error) {
	if cached, found := s.cacheGet(ckCompanies); found {
		return cached.([]CompanyExport), nil
	}
	rows, err := database.DB.Query(`SELECT DISTINCT company, share_code FROM portfolio_holdings ORDER BY company`)
	if err != nil {
		return nil, fmt.Errorf("error querying companies: %w", err)
	}
	defer rows.Close()

	companies := []CompanyExport{}
	for rows.Next() {
		var c CompanyExport
		if err := rows.Scan(&c.Company, &c.ShareCode); err != nil {
			return nil, fmt.Errorf("error scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cacheSet(ckCompanies, companies)
	return companies, nil
}

func (s *uploadServiceImpl) GetShareNames() ([]string, error) {
	if cached, found := s.cacheGet(ckShareNames); found {
		return cached.([]string), nil
	}
	rows, err := database.DB.Query(`SELECT DISTINCT share_name FROM transactions WHERE share_name <> '' ORDER BY share_name`)
	if err != nil {
		return nil, fmt.Errorf("error querying share names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("error scanning share name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cacheSet(ckShareNames, names)
	return names, nil
}

func (s *uploadServiceImpl) cacheGet(key string) (interface{}, bool) {
	if s.reportCache == nil {
		return nil, false
	}
	return s.reportCache.Get(key)
}

func (s *uploadServiceImpl) cacheSet(key string, value interface{}) {
	if s.reportCache != nil {
		s.reportCache.Set(key, value, cache.DefaultExpiration)
	}
}

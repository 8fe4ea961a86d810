package models

import "time"

// ReconciliationKind selects which previously stored rows are superseded
// before a parsed batch is committed.
type ReconciliationKind string

const (
	// ReconcileNone deletes nothing. Used when a transaction file's date
	// window cannot be determined: duplication is preferred over accidental
	// data loss.
	ReconcileNone ReconciliationKind = "none"
	// ReconcileDateRange deletes transactions inside [FromDate, ToDate].
	ReconcileDateRange ReconciliationKind = "date_range"
	// ReconcileMonth deletes holdings for the (Year, Month) of the report.
	ReconcileMonth ReconciliationKind = "month"
	// ReconcileUpsert deletes nothing; rows merge by unique key.
	ReconcileUpsert ReconciliationKind = "upsert"
)

// Reconciliation is the supersession directive a parser hands to the
// committer alongside the records themselves.
type Reconciliation struct {
	Kind     ReconciliationKind `json:"kind"`
	FromDate time.Time          `json:"from_date,omitempty"`
	ToDate   time.Time          `json:"to_date,omitempty"`
	Year     int                `json:"year,omitempty"`
	Month    int                `json:"month,omitempty"`
}

// ParseResult is the outcome of running one report parser over one
// spreadsheet: the candidate records, per-row diagnostics for rows that were
// excluded, and the reconciliation directive. Exactly one of the record
// slices is populated, according to the report kind.
type ParseResult struct {
	Transactions []Transaction
	Holdings     []PortfolioHolding
	Mappings     []ShareNameMapping

	// Diagnostics are positional, "Row <n>: <reason>", with n the 1-based
	// spreadsheet row.
	Diagnostics []string

	// TotalRows counts the data rows considered (rows below the header).
	TotalRows int

	Reconciliation Reconciliation

	// ReportDate is the portfolio report's as-of date; zero for other kinds.
	ReportDate time.Time
}

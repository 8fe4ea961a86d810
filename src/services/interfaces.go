package services

import (
	"errors"
	"io"

	"github.com/username/shareledger/src/models"
)

var (
	// ErrUnsupportedFile rejects a file before parsing begins (extension or
	// content signature).
	ErrUnsupportedFile = errors.New("unsupported file format")
	// ErrStructuralFailure covers everything that rejects the whole file at
	// parse time: unreadable spreadsheet, missing report marker, header or
	// mandatory columns.
	ErrStructuralFailure = errors.New("structural failure")
	// ErrCommitFailed wraps database errors during the atomic delete+insert.
	ErrCommitFailed = errors.New("commit failed")
)

// MaxErrorDetails caps the literal diagnostics echoed per file; anything
// beyond it collapses into a summary count.
const MaxErrorDetails = 50

// DateRange echoes the supersession window applied to a transaction upload.
type DateRange struct {
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
}

// UploadSummary is the per-file outcome of an upload: counts, the
// reconciliation scope applied and the capped row diagnostics.
type UploadSummary struct {
	BatchID         string     `json:"batch_id"`
	Success         bool       `json:"success"`
	Filename        string     `json:"filename"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
	DateRange       *DateRange `json:"date_range,omitempty"`
	Date            string     `json:"date,omitempty"` // portfolio report date
	Year            int        `json:"year,omitempty"`
	Month           int        `json:"month,omitempty"`
	DeletedPrevious int64      `json:"deleted_previous"`
	TotalRows       int        `json:"total_rows"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	Errors          int        `json:"errors"`
	ErrorDetails    []string   `json:"error_details,omitempty"`
}

// PortfolioUploadSummary aggregates the independent per-file results of a
// multi-file portfolio upload.
type PortfolioUploadSummary struct {
	Success         bool             `json:"success"`
	TotalFiles      int              `json:"total_files"`
	SuccessfulFiles int              `json:"successful_files"`
	FailedFiles     int              `json:"failed_files"`
	TotalCreated    int              `json:"total_created"`
	TotalDeleted    int64            `json:"total_deleted"`
	TotalErrors     int              `json:"total_errors"`
	Files           []*UploadSummary `json:"files"`
}

// UploadFile pairs a spreadsheet stream with its filename; the filename
// carries the date window / report date conventions.
type UploadFile struct {
	Reader   io.Reader
	Filename string
}

// TransactionFilter narrows the transaction listing.
type TransactionFilter struct {
	AccountNumber string
	ShareName     string // substring match
	Type          string // substring match
	Limit         int
	Offset        int
}

// TransactionPage is one page of the transaction listing.
type TransactionPage struct {
	Count   int                  `json:"count"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	Results []models.Transaction `json:"results"`
}

// CompanyExport is one distinct company/share-code pair from the holdings.
type CompanyExport struct {
	Company   string `json:"company"`
	ShareCode string `json:"share_code"`
}

// UploadService is the core ingestion surface: one deterministic transform
// per uploaded file, committed atomically, plus the read queries the API
// exposes.
type UploadService interface {
	ProcessTransactionUpload(file io.Reader, filename string) (*UploadSummary, error)
	ProcessPortfolioFiles(files []UploadFile) *PortfolioUploadSummary
	ProcessMappingUpload(file io.Reader, filename string) (*UploadSummary, error)

	GetTransactions(filter TransactionFilter) (*TransactionPage, error)
	GetHoldings(year, month int) ([]models.PortfolioHolding, error)
	GetMappings() ([]models.ShareNameMapping, error)
	GetCompanies() ([]CompanyExport, error)
	GetShareNames() ([]string, error)
}

// PerformanceFilter narrows the monthly performance listing.
type PerformanceFilter struct {
	ShareName string
	Year      int
	Month     int
}

// RecomputeSummary reports what a performance recompute touched.
type RecomputeSummary struct {
	Rows                   int `json:"rows"`
	Shares                 int `json:"shares"`
	TransactionsBackfilled int `json:"transactions_backfilled"`
}

// PerformanceService derives the monthly dividend/yield reporting rows from
// stored transactions and holdings.
type PerformanceService interface {
	Recompute() (*RecomputeSummary, error)
	GetPerformance(filter PerformanceFilter) ([]models.MonthlyPerformance, error)
}

package parsers

import (
	"github.com/username/shareledger/src/models"
	"github.com/username/shareledger/src/xlsx"
)

// ReportParser turns the untyped grid of one uploaded spreadsheet into
// candidate domain records plus row-level diagnostics. A returned error is a
// structural failure (missing report marker, header or mandatory columns) and
// rejects the whole file; row-level problems are reported in
// ParseResult.Diagnostics and never abort the batch.
type ReportParser interface {
	Parse(grid *xlsx.Grid, filename string) (*models.ParseResult, error)
}

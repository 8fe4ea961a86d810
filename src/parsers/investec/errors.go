package investec

import "errors"

// Structural failures. Any of these rejects the whole file; nothing from it
// is committed.
var (
	ErrEmptySheet           = errors.New("the spreadsheet is empty")
	ErrMissingColumns       = errors.New("missing required columns")
	ErrReportMarkerNotFound = errors.New("could not find \"Portfolio Holdings Report\" header")
	ErrHeaderNotFound       = errors.New("could not find header row")
	ErrReportDateNotFound   = errors.New("could not extract report date")
)

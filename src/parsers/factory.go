package parsers

import (
	"fmt"

	"github.com/username/shareledger/src/parsers/investec"
)

// Report kinds understood by the factory.
const (
	ReportTransactions = "transactions"
	ReportPortfolio    = "portfolio"
	ReportMapping      = "mapping"
)

func GetParser(kind string) (ReportParser, error) {
	switch kind {
	case ReportTransactions:
		return investec.NewTransactionParser(), nil
	case ReportPortfolio:
		return investec.NewPortfolioParser(), nil
	case ReportMapping:
		return investec.NewMappingParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for report kind: %s", kind)
	}
}

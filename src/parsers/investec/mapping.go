package investec

import (
	"fmt"
	"strings"

	"github.com/username/shareledger/src/models"
	"github.com/username/shareledger/src/xlsx"
)

// MappingParser extracts share-name mapping rows. Mappings merge by share
// name rather than replacing a range: the sheet is a slowly-growing
// reference table.
type MappingParser struct{}

func NewMappingParser() *MappingParser {
	return &MappingParser{}
}

func (p *MappingParser) Parse(grid *xlsx.Grid, filename string) (*models.ParseResult, error) {
	if grid.RowCount() == 0 {
		return nil, ErrEmptySheet
	}

	// The share name column is mandatory; a sheet without it is rejected
	// outright (no positional fallback).
	headerRow, cols := locateMappingHeader(grid)
	if headerRow < 0 {
		return nil, fmt.Errorf("%w: share_name", ErrMissingColumns)
	}

	result := &models.ParseResult{
		Reconciliation: models.Reconciliation{Kind: models.ReconcileUpsert},
	}

	for i := headerRow + 1; i < grid.RowCount(); i++ {
		result.TotalRows++

		shareName := xlsx.CoerceText(grid.CellAt(i, cols.shareName), models.MaxShareNameLen)
		if shareName == "" {
			continue
		}
		mapping := models.ShareNameMapping{ShareName: shareName}
		if cols.company >= 0 {
			mapping.Company = xlsx.CoerceText(grid.CellAt(i, cols.company), models.MaxCompanyLen)
		}
		if cols.shareCode >= 0 {
			mapping.ShareCode = xlsx.CoerceText(grid.CellAt(i, cols.shareCode), models.MaxShareCodeLen)
		}
		result.Mappings = append(result.Mappings, mapping)
	}

	return result, nil
}

type mappingColumns struct {
	shareName, company, shareCode int
}

// locateMappingHeader scans for the first row carrying a share-name column
// and resolves the optional company/share-code columns on that row. Returns
// -1 when no such row exists.
func locateMappingHeader(grid *xlsx.Grid) (int, mappingColumns) {
	for i := 0; i < grid.RowCount() && i <= boilerplateScanDepth; i++ {
		cols := mappingColumns{shareName: -1, company: -1, shareCode: -1}
		for j, c := range grid.Rows[i] {
			h := normalizeHeader(c.Raw)
			switch {
			case strings.Contains(h, "share_name") || strings.Contains(h, "sharename"):
				if cols.shareName < 0 {
					cols.shareName = j
				}
			case strings.Contains(h, "company"):
				if cols.company < 0 {
					cols.company = j
				}
			case strings.Contains(h, "share_code") || strings.Contains(h, "sharecode") || strings.Contains(h, "code"):
				if cols.shareCode < 0 {
					cols.shareCode = j
				}
			}
		}
		if cols.shareName >= 0 {
			return i, cols
		}
	}
	return -1, mappingColumns{}
}

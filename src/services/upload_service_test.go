package services

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/shareledger/src/database"
	"github.com/username/shareledger/src/logger"
	"github.com/xuri/excelize/v2"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	logger.InitLogger("error")
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() {
		database.DB.Close()
	})
}

func newTestUploadService() UploadService {
	return NewUploadService(cache.New(DefaultCacheExpiration, CacheCleanupInterval))
}

// workbook builds an in-memory xlsx file from string rows.
func workbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		asAny := make([]interface{}, len(row))
		for j, v := range row {
			asAny[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, cell, &asAny))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func transactionRows() [][]string {
	return [][]string{
		{"Date", "Account Number", "Description", "Share Name", "Type", "Quantity", "Value"},
		{"2024-01-15", "10011910139", "Buy 400 SHP at 1,192 Cents", "", "", "400", "-4768.00"},
		{"2024-01-20", "10011910139", "DIV. 327 NINETY 1L", "", "", "0", "150.00"},
		{"2024-02-01", "10011910139", "Sell 10 ABC", "", "", "", "120.00"},
	}
}

func TestProcessTransactionUpload(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	summary, err := svc.ProcessTransactionUpload(
		workbook(t, transactionRows()), "TransactionHistory-All-20240101-20240331.xlsx")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, int64(0), summary.DeletedPrevious)
	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 1, summary.Errors)
	require.NotNil(t, summary.DateRange)
	assert.Equal(t, "2024-01-01", summary.DateRange.FromDate)
	assert.Equal(t, "2024-03-31", summary.DateRange.ToDate)
	assert.Contains(t, summary.Message, "2 transactions")

	page, err := svc.GetTransactions(TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)

	// Sorted by date descending, so the dividend row comes first.
	first := page.Results[0]
	assert.Equal(t, "Dividend", first.Type)
	assert.Equal(t, "NINETY", first.ShareName)
}

func TestProcessTransactionUpload_Idempotent(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()
	filename := "TransactionHistory-All-20240101-20240331.xlsx"

	_, err := svc.ProcessTransactionUpload(workbook(t, transactionRows()), filename)
	require.NoError(t, err)

	// Re-uploading the same window replaces, it does not duplicate.
	summary, err := svc.ProcessTransactionUpload(workbook(t, transactionRows()), filename)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.DeletedPrevious)

	page, err := svc.GetTransactions(TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
}

func TestProcessTransactionUpload_Filters(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	_, err := svc.ProcessTransactionUpload(
		workbook(t, transactionRows()), "TransactionHistory-All-20240101-20240331.xlsx")
	require.NoError(t, err)

	page, err := svc.GetTransactions(TransactionFilter{Type: "Dividend"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "NINETY", page.Results[0].ShareName)

	page, err = svc.GetTransactions(TransactionFilter{ShareName: "SHP"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	page, err = svc.GetTransactions(TransactionFilter{AccountNumber: "nope"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)

	names, err := svc.GetShareNames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SHP", "NINETY"}, names)
}

func TestProcessTransactionUpload_RejectsUnsupportedFile(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	_, err := svc.ProcessTransactionUpload(bytes.NewReader([]byte("a,b,c")), "data.csv")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestProcessTransactionUpload_StructuralFailure(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	rows := [][]string{
		{"Date", "Account Number", "Description"},
		{"2024-01-15", "10011910139", "Buy 400 SHP"},
	}
	_, err := svc.ProcessTransactionUpload(workbook(t, rows), "upload.xlsx")
	assert.ErrorIs(t, err, ErrStructuralFailure)
}

func portfolioRows(instrument string) [][]string {
	return [][]string{
		{"Portfolio Holdings Report"},
		{"Instrument Description", "Total Quantity", "Currency", "Unit Cost (net)", "Total Cost", "Price", "Total Value"},
		{instrument, "100", "ZAR", "150.00", "15000.00", "160.00", "16000.00"},
	}
}

func TestProcessPortfolioFiles(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	summary := svc.ProcessPortfolioFiles([]UploadFile{
		{Reader: workbook(t, portfolioRows("ABSA GROUP LIMITED (ABG)")), Filename: "Holdings-20240131.xlsx"},
		{Reader: bytes.NewReader([]byte("broken")), Filename: "Holdings-20240229.xlsx"},
	})

	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulFiles)
	assert.Equal(t, 1, summary.FailedFiles)
	assert.Equal(t, 1, summary.TotalCreated)
	require.Len(t, summary.Files, 2)
	assert.True(t, summary.Files[0].Success)
	assert.Equal(t, "2024-01-31", summary.Files[0].Date)
	assert.False(t, summary.Files[1].Success)
	assert.NotEmpty(t, summary.Files[1].Error)

	holdings, err := svc.GetHoldings(2024, 1)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "ABSA GROUP LIMITED", holdings[0].Company)
	assert.Equal(t, "ABG", holdings[0].ShareCode)
}

func TestProcessPortfolioFiles_MonthReplace(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	first := svc.ProcessPortfolioFiles([]UploadFile{
		{Reader: workbook(t, portfolioRows("ABSA GROUP LIMITED (ABG)")), Filename: "Holdings-20240131.xlsx"},
	})
	require.True(t, first.Success)

	second := svc.ProcessPortfolioFiles([]UploadFile{
		{Reader: workbook(t, portfolioRows("NEDBANK GROUP LTD (NED)")), Filename: "Holdings-20240115.xlsx"},
	})
	require.True(t, second.Success)
	assert.Equal(t, int64(1), second.TotalDeleted)

	holdings, err := svc.GetHoldings(2024, 1)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "NEDBANK GROUP LTD", holdings[0].Company)
}

func TestPortfolioUpload_PropagatesCompanyToMappings(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	_, err := database.DB.Exec(
		`INSERT INTO share_name_mappings (share_name, company, share_code) VALUES ('ABSA', 'OLD NAME', 'ABG')`)
	require.NoError(t, err)

	summary := svc.ProcessPortfolioFiles([]UploadFile{
		{Reader: workbook(t, portfolioRows("ABSA GROUP LIMITED (ABG)")), Filename: "Holdings-20240131.xlsx"},
	})
	require.True(t, summary.Success)

	mappings, err := svc.GetMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "ABSA GROUP LIMITED", mappings[0].Company)
	assert.Equal(t, "ABG", mappings[0].ShareCode)
}

func mappingRows(rows ...[]string) [][]string {
	return append([][]string{{"Share Name", "Company", "Share Code"}}, rows...)
}

func TestProcessMappingUpload(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	summary, err := svc.ProcessMappingUpload(
		workbook(t, mappingRows(
			[]string{"NINETY", "Ninety One Ltd", "N91"},
			[]string{"SASOL", "Sasol Ltd", "SOL"},
		)), "mappings.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Updated)

	// Second upload: existing names update, blanks never erase.
	summary, err = svc.ProcessMappingUpload(
		workbook(t, mappingRows(
			[]string{"NINETY", "", "N91X"},
			[]string{"PROSUS", "Prosus NV", "PRX"},
		)), "mappings.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)

	mappings, err := svc.GetMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 3)

	byName := map[string]string{}
	codes := map[string]string{}
	for _, m := range mappings {
		byName[m.ShareName] = m.Company
		codes[m.ShareName] = m.ShareCode
	}
	assert.Equal(t, "Ninety One Ltd", byName["NINETY"], "blank incoming company must not erase")
	assert.Equal(t, "N91X", codes["NINETY"], "non-empty incoming code overwrites")
	assert.Equal(t, "Prosus NV", byName["PROSUS"])
}

func TestGetCompanies(t *testing.T) {
	setupTestDB(t)
	svc := newTestUploadService()

	summary := svc.ProcessPortfolioFiles([]UploadFile{
		{Reader: workbook(t, portfolioRows("ABSA GROUP LIMITED (ABG)")), Filename: "Holdings-20240131.xlsx"},
	})
	require.True(t, summary.Success)

	companies, err := svc.GetCompanies()
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "ABSA GROUP LIMITED", companies[0].Company)
	assert.Equal(t, "ABG", companies[0].ShareCode)

	// Second call comes from cache and stays consistent.
	again, err := svc.GetCompanies()
	require.NoError(t, err)
	assert.Equal(t, companies, again)
}

func TestCapDiagnostics(t *testing.T) {
	var diags []string
	for i := 0; i < MaxErrorDetails+10; i++ {
		diags = append(diags, "Row 1: err")
	}
	capped := capDiagnostics(diags)
	require.Len(t, capped, MaxErrorDetails+1)
	assert.Equal(t, "... and 10 more errors", capped[MaxErrorDetails])

	short := []string{"Row 1: err"}
	assert.Equal(t, short, capDiagnostics(short))
}

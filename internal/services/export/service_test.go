package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/pdf"
	"github.com/xuri/excelize/v2"
)

func testTables() *models.CrossRefTables {
	return &models.CrossRefTables{
		UseCaseProviderRows: []models.UseCaseProviderRow{
			{UseCase: "Billing", Provider: "HANA", FMList: "Z_BILLING_POST"},
			{UseCase: "Finance", Provider: "SAP", FMList: "Z_READ_DATA, Z_WRITE_DATA"},
			{UseCase: "Reporting", Provider: "SAP", FMList: ""},
		},
		FMUseCaseRows: []models.FMUseCaseRow{
			{FM: "Z_BILLING_POST", UseCases: "Billing"},
			{FM: "Z_READ_DATA", UseCases: "Finance"},
			{FM: "Z_WRITE_DATA", UseCases: "Finance"},
		},
		UniqueFMs: []string{"Z_BILLING_POST", "Z_READ_DATA", "Z_WRITE_DATA"},
		Summary: models.AnalysisSummary{
			TotalUseCases:  3,
			TotalProviders: 2,
			TotalLogs:      3,
			TotalUniqueFMs: 3,
			TopFMs:         "Z_BILLING_POST, Z_READ_DATA, Z_WRITE_DATA",
		},
	}
}

func testRun() *models.AnalysisRun {
	run := models.NewAnalysisRun(models.RunSourceArchive, "q1_export.zip")
	run.CreatedAt = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	run.Complete(testTables(), 3)
	return run
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	return NewService(pdf.NewService(logger), logger)
}

func TestExcelWorkbook(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.ExcelWorkbook(testTables())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	sort.Strings(sheets)
	expected := append([]string(nil), models.TableNames...)
	sort.Strings(expected)
	assert.Equal(t, expected, sheets)

	// Forward table: header then data rows
	rows, err := f.GetRows(models.TableUseCaseProviderFM)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.HeaderUseCaseProviderFM, rows[0])
	assert.Equal(t, []string{"Billing", "HANA", "Z_BILLING_POST"}, rows[1])
	assert.Equal(t, []string{"Finance", "SAP", "Z_READ_DATA, Z_WRITE_DATA"}, rows[2])

	// Summary: single data row
	rows, err = f.GetRows(models.TableSummary)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.HeaderSummary, rows[0])
	assert.Equal(t, "3", rows[1][0])
	assert.Equal(t, "Z_BILLING_POST, Z_READ_DATA, Z_WRITE_DATA", rows[1][4])
}

func TestExcelWorkbookNilTables(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ExcelWorkbook(nil)
	assert.Error(t, err)
}

func TestCSVTableForward(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.CSVTable(testTables(), models.TableUseCaseProviderFM)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, models.HeaderUseCaseProviderFM, records[0])
	assert.Equal(t, []string{"Finance", "SAP", "Z_READ_DATA, Z_WRITE_DATA"}, records[2])
	// Empty FM lists survive as empty cells
	assert.Equal(t, []string{"Reporting", "SAP", ""}, records[3])
}

func TestCSVTableReverse(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.CSVTable(testTables(), models.TableFMUseCase)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Z_READ_DATA", "Finance"}, records[2])
}

func TestCSVTableUniqueAndSummary(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.CSVTable(testTables(), models.TableUniqueFMs)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"fm"}, records[0])

	data, err = svc.CSVTable(testTables(), models.TableSummary)
	require.NoError(t, err)
	records, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.HeaderSummary, records[0])
	assert.Equal(t, []string{"3", "2", "3", "3", "Z_BILLING_POST, Z_READ_DATA, Z_WRITE_DATA"}, records[1])
}

func TestCSVTableUnknownName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CSVTable(testTables(), "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestSummaryPDF(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.SummaryPDF(testRun())
	require.NoError(t, err)
	require.Greater(t, len(data), 500)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestSummaryPDFWithoutResults(t *testing.T) {
	svc := newTestService(t)

	run := models.NewAnalysisRun(models.RunSourceUpload, "pending")
	_, err := svc.SummaryPDF(run)
	assert.Error(t, err)
}

func TestBundle(t *testing.T) {
	svc := newTestService(t)

	data, err := svc.Bundle(testRun())
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)

	expected := []string{
		WorkbookFilename,
		"fm_usecase.csv",
		SummaryFilename,
		"summary.csv",
		"unique_fms.csv",
		"usecase_provider_fm.csv",
	}
	sort.Strings(expected)
	assert.Equal(t, expected, names)
}

func TestBundleWithoutResults(t *testing.T) {
	svc := newTestService(t)

	run := models.NewAnalysisRun(models.RunSourceDirectory, "/data/exports")
	_, err := svc.Bundle(run)
	assert.Error(t, err)
}

package interfaces

import (
	"github.com/ternarybob/indago/internal/models"
)

// ExportService materializes a run's cross-reference tables into the
// downloadable deliverables.
type ExportService interface {
	// ExcelWorkbook renders the four tables as analysis.xlsx, one sheet per table.
	ExcelWorkbook(tables *models.CrossRefTables) ([]byte, error)

	// CSVTable renders one named table as CSV. The name must be one of
	// models.TableNames.
	CSVTable(tables *models.CrossRefTables, table string) ([]byte, error)

	// SummaryPDF renders a one-page summary report for the run.
	SummaryPDF(run *models.AnalysisRun) ([]byte, error)

	// Bundle packages all CSVs, the workbook and the summary PDF into
	// bw_dependency_analysis.zip.
	Bundle(run *models.AnalysisRun) ([]byte, error)
}

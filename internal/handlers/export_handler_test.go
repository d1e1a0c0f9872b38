package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// mockExporter implements interfaces.ExportService for testing
type mockExporter struct {
	excelFunc  func(tables *models.CrossRefTables) ([]byte, error)
	csvFunc    func(tables *models.CrossRefTables, table string) ([]byte, error)
	pdfFunc    func(run *models.AnalysisRun) ([]byte, error)
	bundleFunc func(run *models.AnalysisRun) ([]byte, error)
}

func (m *mockExporter) ExcelWorkbook(tables *models.CrossRefTables) ([]byte, error) {
	if m.excelFunc != nil {
		return m.excelFunc(tables)
	}
	return []byte("xlsx"), nil
}

func (m *mockExporter) CSVTable(tables *models.CrossRefTables, table string) ([]byte, error) {
	if m.csvFunc != nil {
		return m.csvFunc(tables, table)
	}
	return []byte("csv"), nil
}

func (m *mockExporter) SummaryPDF(run *models.AnalysisRun) ([]byte, error) {
	if m.pdfFunc != nil {
		return m.pdfFunc(run)
	}
	return []byte("pdf"), nil
}

func (m *mockExporter) Bundle(run *models.AnalysisRun) ([]byte, error) {
	if m.bundleFunc != nil {
		return m.bundleFunc(run)
	}
	return []byte("zip"), nil
}

func newTestExportHandler(analyzer interfaces.AnalyzerService, exporter interfaces.ExportService) *ExportHandler {
	return NewExportHandler(analyzer, exporter, common.NewDefaultConfig(), arbor.NewLogger())
}

func analyzerReturning(run *models.AnalysisRun) *mockAnalyzer {
	return &mockAnalyzer{
		getRunFunc: func(ctx context.Context, id string) (*models.AnalysisRun, error) {
			return run, nil
		},
	}
}

func TestExportHandlerWorkbook(t *testing.T) {
	run := completedRun()
	exporter := &mockExporter{
		excelFunc: func(tables *models.CrossRefTables) ([]byte, error) {
			if tables != run.Tables {
				t.Error("Expected the run's tables to be passed to the exporter")
			}
			return []byte("workbook bytes"), nil
		},
	}
	handler := newTestExportHandler(analyzerReturning(run), exporter)

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/xlsx", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type: %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="analysis.xlsx"` {
		t.Errorf("Unexpected disposition: %s", got)
	}
	if w.Body.String() != "workbook bytes" {
		t.Errorf("Expected workbook bytes in body, got '%s'", w.Body.String())
	}
}

func TestExportHandlerBundle(t *testing.T) {
	run := completedRun()
	handler := newTestExportHandler(analyzerReturning(run), &mockExporter{})

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/bundle", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Unexpected content type: %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="bw_dependency_analysis.zip"` {
		t.Errorf("Unexpected disposition: %s", got)
	}
}

func TestExportHandlerSummaryPDF(t *testing.T) {
	run := completedRun()
	handler := newTestExportHandler(analyzerReturning(run), &mockExporter{})

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/pdf", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Unexpected content type: %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="summary.pdf"` {
		t.Errorf("Unexpected disposition: %s", got)
	}
}

func TestExportHandlerCSV(t *testing.T) {
	run := completedRun()
	var gotTable string
	exporter := &mockExporter{
		csvFunc: func(tables *models.CrossRefTables, table string) ([]byte, error) {
			gotTable = table
			return []byte("a;b\n"), nil
		},
	}
	handler := newTestExportHandler(analyzerReturning(run), exporter)

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/csv/"+models.TableUniqueFMs, nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotTable != models.TableUniqueFMs {
		t.Errorf("Expected table '%s', got '%s'", models.TableUniqueFMs, gotTable)
	}
	if got := w.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Unexpected content type: %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="unique_fms.csv"` {
		t.Errorf("Unexpected disposition: %s", got)
	}
}

func TestExportHandlerUnknownCSVTable(t *testing.T) {
	run := completedRun()
	exporter := &mockExporter{
		csvFunc: func(tables *models.CrossRefTables, table string) ([]byte, error) {
			return nil, &mockError{msg: "unknown table: " + table}
		},
	}
	handler := newTestExportHandler(analyzerReturning(run), exporter)

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/csv/bogus", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestExportHandlerUnknownFormat(t *testing.T) {
	run := completedRun()
	handler := newTestExportHandler(analyzerReturning(run), &mockExporter{})

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/docx", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestExportHandlerNoResults(t *testing.T) {
	run := models.NewAnalysisRun(models.RunSourceDirectory, "/data/bw-logs")
	run.Fail(&mockError{msg: "boom"})
	handler := newTestExportHandler(analyzerReturning(run), &mockExporter{})

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/export/xlsx", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestExportHandlerRunNotFound(t *testing.T) {
	analyzer := &mockAnalyzer{
		getRunFunc: func(ctx context.Context, id string) (*models.AnalysisRun, error) {
			return nil, &mockError{msg: "run not found: " + id}
		},
	}
	handler := newTestExportHandler(analyzer, &mockExporter{})

	req := httptest.NewRequest("GET", "/api/runs/run_missing/export/xlsx", nil)
	w := httptest.NewRecorder()

	handler.ExportHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

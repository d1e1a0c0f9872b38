package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/xuri/excelize/v2"
)

// Download filenames for the export endpoints
const (
	WorkbookFilename = "analysis.xlsx"
	SummaryFilename  = "summary.pdf"
	BundleFilename   = "bw_dependency_analysis.zip"
)

// Service implements interfaces.ExportService
type Service struct {
	pdf    interfaces.PDFService
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ExportService = (*Service)(nil)

// NewService creates a new export service
func NewService(pdfService interfaces.PDFService, logger arbor.ILogger) *Service {
	return &Service{
		pdf:    pdfService,
		logger: logger,
	}
}

// ExcelWorkbook renders the four cross-reference tables as one workbook,
// one sheet per table.
func (s *Service) ExcelWorkbook(tables *models.CrossRefTables) ([]byte, error) {
	if tables == nil {
		return nil, fmt.Errorf("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	writeSheet := func(sheet string, headers []string, rows [][]interface{}) error {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		headerRow := make([]interface{}, len(headers))
		for i, h := range headers {
			headerRow[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", sheet, err)
		}

		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(sheet, "A1", endCell, header); err != nil {
			return fmt.Errorf("failed to style header for %s: %w", sheet, err)
		}

		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("failed to write row %d for %s: %w", i+2, sheet, err)
			}
		}
		return nil
	}

	forward := make([][]interface{}, len(tables.UseCaseProviderRows))
	for i, row := range tables.UseCaseProviderRows {
		forward[i] = []interface{}{row.UseCase, row.Provider, row.FMList}
	}
	if err := writeSheet(models.TableUseCaseProviderFM, models.HeaderUseCaseProviderFM, forward); err != nil {
		return nil, err
	}

	reverse := make([][]interface{}, len(tables.FMUseCaseRows))
	for i, row := range tables.FMUseCaseRows {
		reverse[i] = []interface{}{row.FM, row.UseCases}
	}
	if err := writeSheet(models.TableFMUseCase, models.HeaderFMUseCase, reverse); err != nil {
		return nil, err
	}

	unique := make([][]interface{}, len(tables.UniqueFMs))
	for i, fm := range tables.UniqueFMs {
		unique[i] = []interface{}{fm}
	}
	if err := writeSheet(models.TableUniqueFMs, models.HeaderUniqueFMs, unique); err != nil {
		return nil, err
	}

	summary := [][]interface{}{{
		tables.Summary.TotalUseCases,
		tables.Summary.TotalProviders,
		tables.Summary.TotalLogs,
		tables.Summary.TotalUniqueFMs,
		tables.Summary.TopFMs,
	}}
	if err := writeSheet(models.TableSummary, models.HeaderSummary, summary); err != nil {
		return nil, err
	}

	// Wide columns for the list-bearing sheets
	f.SetColWidth(models.TableUseCaseProviderFM, "A", "B", 24)
	f.SetColWidth(models.TableUseCaseProviderFM, "C", "C", 80)
	f.SetColWidth(models.TableFMUseCase, "A", "A", 34)
	f.SetColWidth(models.TableFMUseCase, "B", "B", 80)
	f.SetColWidth(models.TableUniqueFMs, "A", "A", 34)
	f.SetColWidth(models.TableSummary, "A", "E", 22)

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(models.TableUseCaseProviderFM); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Debug().Int("workbook_size", buf.Len()).Msg("Excel workbook generated")
	return buf.Bytes(), nil
}

// CSVTable renders one named cross-reference table as CSV
func (s *Service) CSVTable(tables *models.CrossRefTables, table string) ([]byte, error) {
	if tables == nil {
		return nil, fmt.Errorf("no tables to export")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	switch table {
	case models.TableUseCaseProviderFM:
		if err := w.Write(models.HeaderUseCaseProviderFM); err != nil {
			return nil, err
		}
		for _, row := range tables.UseCaseProviderRows {
			if err := w.Write([]string{row.UseCase, row.Provider, row.FMList}); err != nil {
				return nil, err
			}
		}
	case models.TableFMUseCase:
		if err := w.Write(models.HeaderFMUseCase); err != nil {
			return nil, err
		}
		for _, row := range tables.FMUseCaseRows {
			if err := w.Write([]string{row.FM, row.UseCases}); err != nil {
				return nil, err
			}
		}
	case models.TableUniqueFMs:
		if err := w.Write(models.HeaderUniqueFMs); err != nil {
			return nil, err
		}
		for _, fm := range tables.UniqueFMs {
			if err := w.Write([]string{fm}); err != nil {
				return nil, err
			}
		}
	case models.TableSummary:
		if err := w.Write(models.HeaderSummary); err != nil {
			return nil, err
		}
		record := []string{
			fmt.Sprintf("%d", tables.Summary.TotalUseCases),
			fmt.Sprintf("%d", tables.Summary.TotalProviders),
			fmt.Sprintf("%d", tables.Summary.TotalLogs),
			fmt.Sprintf("%d", tables.Summary.TotalUniqueFMs),
			tables.Summary.TopFMs,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown table: %s", table)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// SummaryPDF renders a one-page report for the run
func (s *Service) SummaryPDF(run *models.AnalysisRun) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("no run to export")
	}
	if run.Tables == nil {
		return nil, fmt.Errorf("run %s has no results to export", run.ID)
	}

	markdown := s.summaryMarkdown(run)
	return s.pdf.ConvertMarkdownToPDF(markdown, "BW Dependency Analysis")
}

// summaryMarkdown builds the report body fed to the PDF renderer
func (s *Service) summaryMarkdown(run *models.AnalysisRun) string {
	var b strings.Builder

	b.WriteString("# BW Dependency Analysis\n\n")
	b.WriteString(fmt.Sprintf("**Run:** %s\n\n", run.ID))
	b.WriteString(fmt.Sprintf("**Source:** %s", run.Source))
	if run.Label != "" {
		b.WriteString(fmt.Sprintf(" (%s)", run.Label))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("**Created:** %s\n\n", run.CreatedAt.Format(time.RFC1123)))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	b.WriteString(fmt.Sprintf("| Total Use Cases | %d |\n", run.Tables.Summary.TotalUseCases))
	b.WriteString(fmt.Sprintf("| Total Providers | %d |\n", run.Tables.Summary.TotalProviders))
	b.WriteString(fmt.Sprintf("| Total Logs Processed | %d |\n", run.Tables.Summary.TotalLogs))
	b.WriteString(fmt.Sprintf("| Total Unique FMs | %d |\n", run.Tables.Summary.TotalUniqueFMs))
	b.WriteString(fmt.Sprintf("| Top 5 Most Used FMs | %s |\n", run.Tables.Summary.TopFMs))
	b.WriteString("\n")

	b.WriteString("## Use Cases\n\n")
	b.WriteString("| Use Case | Provider | FM Count |\n")
	b.WriteString("|----------|----------|----------|\n")
	for _, row := range run.Tables.UseCaseProviderRows {
		count := 0
		if row.FMList != "" {
			count = len(strings.Split(row.FMList, ", "))
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %d |\n", row.UseCase, row.Provider, count))
	}

	return b.String()
}

// Bundle packages all CSVs, the workbook and the summary PDF into one archive
func (s *Service) Bundle(run *models.AnalysisRun) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("no run to export")
	}
	if run.Tables == nil {
		return nil, fmt.Errorf("run %s has no results to export", run.ID)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	addFile := func(name string, data []byte) error {
		f, err := w.Create(name)
		if err != nil {
			return fmt.Errorf("failed to add %s to bundle: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write %s to bundle: %w", name, err)
		}
		return nil
	}

	for _, table := range models.TableNames {
		data, err := s.CSVTable(run.Tables, table)
		if err != nil {
			return nil, err
		}
		if err := addFile(table+".csv", data); err != nil {
			return nil, err
		}
	}

	workbook, err := s.ExcelWorkbook(run.Tables)
	if err != nil {
		return nil, err
	}
	if err := addFile(WorkbookFilename, workbook); err != nil {
		return nil, err
	}

	summary, err := s.SummaryPDF(run)
	if err != nil {
		return nil, err
	}
	if err := addFile(SummaryFilename, summary); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize bundle: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Int("bundle_size", buf.Len()).
		Msg("Export bundle generated")

	return buf.Bytes(), nil
}

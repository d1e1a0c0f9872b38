package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/export"
)

// ExportHandler handles HTTP requests for downloading run deliverables
type ExportHandler struct {
	analyzer interfaces.AnalyzerService
	exporter interfaces.ExportService
	config   *common.Config
	logger   arbor.ILogger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(analyzer interfaces.AnalyzerService, exporter interfaces.ExportService, config *common.Config, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{
		analyzer: analyzer,
		exporter: exporter,
		config:   config,
		logger:   logger,
	}
}

// ExportHandler handles GET /api/runs/{id}/export/{format}
// Formats: xlsx, bundle, pdf, csv/{table}.
func (h *ExportHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id, format := splitRunSubpath(r.URL.Path, "/export/")
	if id == "" || format == "" {
		WriteError(w, http.StatusBadRequest, "Run ID and export format are required")
		return
	}

	run, err := h.analyzer.GetRun(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, "Run not found")
		} else {
			h.logger.Error().Err(err).Str("id", id).Msg("Run lookup failed")
			WriteError(w, http.StatusInternalServerError, "Failed to load run")
		}
		return
	}
	if run.Tables == nil {
		WriteError(w, http.StatusConflict, "Run has no results to export")
		return
	}

	switch {
	case format == "xlsx":
		data, err := h.exporter.ExcelWorkbook(run.Tables)
		if err != nil {
			h.logger.Error().Err(err).Str("id", id).Msg("Failed to build workbook")
			WriteError(w, http.StatusInternalServerError, "Failed to build workbook")
			return
		}
		serveAttachment(w, data, h.config.Export.WorkbookName,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	case format == "bundle":
		data, err := h.exporter.Bundle(run)
		if err != nil {
			h.logger.Error().Err(err).Str("id", id).Msg("Failed to build export bundle")
			WriteError(w, http.StatusInternalServerError, "Failed to build export bundle")
			return
		}
		serveAttachment(w, data, h.config.Export.BundleName, "application/zip")

	case format == "pdf":
		data, err := h.exporter.SummaryPDF(run)
		if err != nil {
			h.logger.Error().Err(err).Str("id", id).Msg("Failed to build summary PDF")
			WriteError(w, http.StatusInternalServerError, "Failed to build summary PDF")
			return
		}
		serveAttachment(w, data, export.SummaryFilename, "application/pdf")

	case strings.HasPrefix(format, "csv/"):
		table := strings.TrimPrefix(format, "csv/")
		data, err := h.exporter.CSVTable(run.Tables, table)
		if err != nil {
			if strings.Contains(err.Error(), "unknown table") {
				WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown table: %s", table))
			} else {
				h.logger.Error().Err(err).Str("id", id).Str("table", table).Msg("Failed to build CSV")
				WriteError(w, http.StatusInternalServerError, "Failed to build CSV")
			}
			return
		}
		serveAttachment(w, data, table+".csv", "text/csv")

	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown export format: %s", format))
	}
}

func serveAttachment(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// AnalysisHandler handles HTTP requests for running and managing analyses
type AnalysisHandler struct {
	analyzer interfaces.AnalyzerService
	config   *common.Config
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analyzer interfaces.AnalyzerService, config *common.Config, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		config:   config,
		logger:   logger,
		validate: validator.New(),
	}
}

// directoryRequest is the body of POST /api/analyze/directory.
type directoryRequest struct {
	Path string `json:"path" validate:"required"`
}

// AnalyzeArchiveHandler handles POST /api/analyze/archive
// Expects a multipart form with a single "archive" file field holding a ZIP.
func (h *AnalysisHandler) AnalyzeArchiveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	maxBytes := int64(h.config.Analysis.MaxArchiveSizeMB) * 1024 * 1024
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to parse archive upload form")
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Archive file is required (field \"archive\")")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read archive upload")
		WriteError(w, http.StatusInternalServerError, "Failed to read archive")
		return
	}
	if int64(len(data)) > maxBytes {
		WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Archive exceeds maximum size of %d MB", h.config.Analysis.MaxArchiveSizeMB))
		return
	}

	run, err := h.analyzer.AnalyzeArchive(r.Context(), header.Filename, data)
	if err != nil {
		h.writeAnalysisError(w, err, "Failed to analyze archive")
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

// AnalyzeFilesHandler handles POST /api/analyze/files
// Expects a multipart form with one or more "files" fields, each an
// individual dependency log.
func (h *AnalysisHandler) AnalyzeFilesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	perFileBytes := int64(h.config.Analysis.MaxUploadSizeMB) * 1024 * 1024
	maxBytes := perFileBytes * int64(h.config.Analysis.MaxUploadFiles)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to parse file upload form")
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one file is required (field \"files\")")
		return
	}

	uploads := make(map[string]string)
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Failed to open uploaded file")
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read uploaded file %s", header.Filename))
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, perFileBytes+1))
		file.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read uploaded file %s", header.Filename))
			return
		}
		if int64(len(content)) > perFileBytes {
			WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File %s exceeds maximum size of %d MB", header.Filename, h.config.Analysis.MaxUploadSizeMB))
			return
		}

		uploads[header.Filename] = string(content)
	}

	label := r.FormValue("label")
	if label == "" {
		label = fmt.Sprintf("%d uploaded files", len(uploads))
	}

	run, err := h.analyzer.AnalyzeUploads(r.Context(), label, uploads)
	if err != nil {
		h.writeAnalysisError(w, err, "Failed to analyze uploaded files")
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

// AnalyzeDirectoryHandler handles POST /api/analyze/directory
func (h *AnalysisHandler) AnalyzeDirectoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req directoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode directory request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Directory path is required")
		return
	}

	run, err := h.analyzer.AnalyzeDirectory(r.Context(), req.Path)
	if err != nil {
		h.writeAnalysisError(w, err, "Failed to analyze directory")
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

// ListRunsHandler handles GET /api/runs
func (h *AnalysisHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	opts := &interfaces.ListOptions{
		Source:   r.URL.Query().Get("source"),
		Status:   r.URL.Query().Get("status"),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
		OrderDir: r.URL.Query().Get("order"),
	}

	runs, err := h.analyzer.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	if runs == nil {
		runs = []*models.AnalysisRun{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunHandler handles GET /api/runs/{id}
func (h *AnalysisHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/runs/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.analyzer.GetRun(r.Context(), id)
	if err != nil {
		h.writeRunLookupError(w, err, id)
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

// GetTableHandler handles GET /api/runs/{id}/tables/{name}
func (h *AnalysisHandler) GetTableHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id, name := splitRunSubpath(r.URL.Path, "/tables/")
	if id == "" || name == "" {
		WriteError(w, http.StatusBadRequest, "Run ID and table name are required")
		return
	}

	run, err := h.analyzer.GetRun(r.Context(), id)
	if err != nil {
		h.writeRunLookupError(w, err, id)
		return
	}
	if run.Tables == nil {
		WriteError(w, http.StatusConflict, "Run has no results")
		return
	}

	switch name {
	case models.TableUseCaseProviderFM:
		WriteJSON(w, http.StatusOK, run.Tables.UseCaseProviderRows)
	case models.TableFMUseCase:
		WriteJSON(w, http.StatusOK, run.Tables.FMUseCaseRows)
	case models.TableUniqueFMs:
		WriteJSON(w, http.StatusOK, run.Tables.UniqueFMs)
	case models.TableSummary:
		WriteJSON(w, http.StatusOK, run.Tables.Summary)
	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown table: %s", name))
	}
}

// DeleteRunHandler handles DELETE /api/runs/{id}
func (h *AnalysisHandler) DeleteRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/runs/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	if err := h.analyzer.DeleteRun(r.Context(), id); err != nil {
		h.writeRunLookupError(w, err, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeAnalysisError maps analyzer failures onto HTTP responses. An empty
// batch is the caller's problem (no valid logs in what they sent), not a
// server fault.
func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, models.ErrNoRecords) {
		WriteError(w, http.StatusUnprocessableEntity,
			"No valid dependency logs found. Check that the files follow the expected log format.")
		return
	}

	h.logger.Error().Err(err).Msg(fallback)
	msg := err.Error()
	switch {
	case strings.Contains(msg, "exceeds maximum") || strings.Contains(msg, "too many files"):
		WriteError(w, http.StatusRequestEntityTooLarge, msg)
	case strings.Contains(msg, "failed to read archive"),
		strings.Contains(msg, "outside the configured scan roots"),
		strings.Contains(msg, "failed to access scan root"),
		strings.Contains(msg, "scan root is not a directory"):
		WriteError(w, http.StatusBadRequest, msg)
	default:
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *AnalysisHandler) writeRunLookupError(w http.ResponseWriter, err error, id string) {
	if strings.Contains(err.Error(), "not found") {
		WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	h.logger.Error().Err(err).Str("id", id).Msg("Run lookup failed")
	WriteError(w, http.StatusInternalServerError, "Failed to load run")
}

// splitRunSubpath splits "/api/runs/{id}<sep>{rest}" into id and rest.
func splitRunSubpath(path, sep string) (id, rest string) {
	trimmed := strings.TrimPrefix(path, "/api/runs/")
	if trimmed == path {
		return "", ""
	}
	idx := strings.Index(trimmed, sep)
	if idx < 0 {
		return "", ""
	}
	return trimmed[:idx], strings.TrimSuffix(trimmed[idx+len(sep):], "/")
}

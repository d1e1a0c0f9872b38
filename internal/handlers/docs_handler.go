package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

// DocsHandler serves the rendered markdown reference pages
type DocsHandler struct {
	docs   interfaces.DocsService
	logger arbor.ILogger
}

// NewDocsHandler creates a new DocsHandler
func NewDocsHandler(docs interfaces.DocsService, logger arbor.ILogger) *DocsHandler {
	return &DocsHandler{
		docs:   docs,
		logger: logger,
	}
}

// ListDocsHandler handles GET /api/docs
func (h *DocsHandler) ListDocsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	pages, err := h.docs.ListPages()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documentation pages")
		WriteError(w, http.StatusInternalServerError, "Failed to list documentation pages")
		return
	}

	if pages == nil {
		pages = []*interfaces.DocPage{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

// GetDocHandler handles GET /api/docs/{name}
func (h *DocsHandler) GetDocHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	name := extractIDFromPath(r.URL.Path, "/api/docs/")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Page name is required")
		return
	}

	page, err := h.docs.GetPage(name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "invalid") {
			WriteError(w, http.StatusNotFound, "Page not found")
		} else {
			h.logger.Error().Err(err).Str("name", name).Msg("Failed to load documentation page")
			WriteError(w, http.StatusInternalServerError, "Failed to load documentation page")
		}
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

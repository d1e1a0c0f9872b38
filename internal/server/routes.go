package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI Page routes (HTML templates)
	mux.HandleFunc("/", s.app.PageHandler.ServePage("index.html", "home"))
	mux.HandleFunc("/help", s.app.PageHandler.ServePage("help.html", "help"))

	// Static files (CSS, JS, images)
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Analysis
	mux.HandleFunc("/api/analyze/archive", s.app.AnalysisHandler.AnalyzeArchiveHandler)     // POST - ZIP archive upload
	mux.HandleFunc("/api/analyze/files", s.app.AnalysisHandler.AnalyzeFilesHandler)         // POST - individual log uploads
	mux.HandleFunc("/api/analyze/directory", s.app.AnalysisHandler.AnalyzeDirectoryHandler) // POST - scan a server directory

	// API routes - Analysis runs
	mux.HandleFunc("/api/runs", s.app.AnalysisHandler.ListRunsHandler)
	mux.HandleFunc("/api/runs/", s.handleRunRoutes) // /{id}, /{id}/tables/{name}, /{id}/export/{format}

	// API routes - Documentation pages
	mux.HandleFunc("/api/docs", s.app.DocsHandler.ListDocsHandler)
	mux.HandleFunc("/api/docs/", s.app.DocsHandler.GetDocHandler)

	// API routes - Logs
	mux.HandleFunc("/api/logs/recent", s.app.WSHandler.GetRecentLogsHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleRunRoutes dispatches run-scoped requests: table and export subpaths
// first, then plain run lookup or deletion by method.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if strings.Contains(path, "/tables/") {
		s.app.AnalysisHandler.GetTableHandler(w, r)
		return
	}

	if strings.Contains(path, "/export/") {
		s.app.ExportHandler.ExportHandler(w, r)
		return
	}

	switch r.Method {
	case "GET":
		s.app.AnalysisHandler.GetRunHandler(w, r)
	case "DELETE":
		s.app.AnalysisHandler.DeleteRunHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	storage   interfaces.StorageManager
	config    *common.Config
	logger    arbor.ILogger
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:   storage,
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	runCount, err := h.storage.RunStorage().CountRuns(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count runs for status")
		runCount = -1
	}

	storageMode := "disk"
	if h.config.Storage.Badger.InMemory {
		storageMode = "memory"
	}

	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"version":             common.GetVersion(),
		"uptime_seconds":      int64(uptime.Seconds()),
		"uptime":              uptime.Round(time.Second).String(),
		"run_count":           runCount,
		"storage_mode":        storageMode,
		"goroutines":          runtime.NumGoroutine(),
		"dispatched_handlers": common.GetGoroutineCount(),
		"timestamp":           time.Now(),
	})
}

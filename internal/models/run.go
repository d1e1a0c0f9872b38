package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecords is returned when discovery finds no parseable dependency logs.
// Callers map it to a user-facing "nothing to analyze" response rather than a
// server fault.
var ErrNoRecords = errors.New("no valid dependency logs found")

// RunStatus represents the state of an analysis run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSource identifies how the logs were supplied to a run.
type RunSource string

const (
	RunSourceArchive   RunSource = "archive"
	RunSourceUpload    RunSource = "upload"
	RunSourceDirectory RunSource = "directory"
)

// AnalysisRun is the stored unit of work: one batch of dependency logs,
// analyzed together, with its derived cross-reference tables.
type AnalysisRun struct {
	ID     string    `json:"id"` // run_{uuid}
	Source RunSource `json:"source"`
	Label  string    `json:"label"` // archive/directory name or upload batch label
	Status RunStatus `json:"status"`

	RecordCount int `json:"record_count"`

	Tables *CrossRefTables `json:"tables,omitempty"`
	Error  string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewAnalysisRun creates a run in the running state with a fresh ID.
func NewAnalysisRun(source RunSource, label string) *AnalysisRun {
	return &AnalysisRun{
		ID:        fmt.Sprintf("run_%s", uuid.New().String()),
		Source:    source,
		Label:     label,
		Status:    RunStatusRunning,
		CreatedAt: time.Now(),
	}
}

// Complete marks the run finished with its results attached.
func (r *AnalysisRun) Complete(tables *CrossRefTables, recordCount int) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.Tables = tables
	r.RecordCount = recordCount
	r.CompletedAt = &now
}

// Fail marks the run failed with the given reason.
func (r *AnalysisRun) Fail(err error) {
	now := time.Now()
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.CompletedAt = &now
}

// IsTerminal reports whether the run has finished, successfully or not.
func (r *AnalysisRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

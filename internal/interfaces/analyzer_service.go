package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// AnalyzerService runs dependency log analysis end to end: discovery,
// parsing, aggregation and persistence of the resulting run.
type AnalyzerService interface {
	// AnalyzeArchive analyzes dependency logs found inside a ZIP archive.
	AnalyzeArchive(ctx context.Context, label string, data []byte) (*models.AnalysisRun, error)

	// AnalyzeUploads analyzes individually uploaded log files (filename -> text).
	AnalyzeUploads(ctx context.Context, label string, files map[string]string) (*models.AnalysisRun, error)

	// AnalyzeDirectory analyzes dependency logs found under a local directory.
	AnalyzeDirectory(ctx context.Context, root string) (*models.AnalysisRun, error)

	// GetRun returns a stored run by ID.
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)

	// ListRuns returns stored runs, newest first.
	ListRuns(ctx context.Context, opts *ListOptions) ([]*models.AnalysisRun, error)

	// DeleteRun removes a stored run.
	DeleteRun(ctx context.Context, id string) error
}

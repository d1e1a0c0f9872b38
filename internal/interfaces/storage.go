// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th July 2026 11:23:41 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// ListOptions for listing analysis runs
type ListOptions struct {
	Source   string // Filter by run source: archive, upload, directory (empty = all)
	Status   string // Filter by run status (empty = all)
	Limit    int
	Offset   int
	OrderDir string // asc, desc by creation time (default: desc)
}

// RunStorage - interface for analysis run persistence
type RunStorage interface {
	// CRUD operations
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)
	DeleteRun(ctx context.Context, id string) error

	// List operations
	ListRuns(ctx context.Context, opts *ListOptions) ([]*models.AnalysisRun, error)

	// Retention operations
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteRunsBeyond(ctx context.Context, keep int) (int, error)

	// Stats operations
	CountRuns(ctx context.Context) (int, error)

	// Bulk operations
	ClearAll(ctx context.Context) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	RunStorage() RunStorage
	DB() interface{}
	// Maintain runs backend housekeeping such as value log compaction
	Maintain() error
	Close() error
}

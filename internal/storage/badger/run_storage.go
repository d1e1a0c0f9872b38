package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) DeleteRun(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.AnalysisRun{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func (s *RunStorage) ListRuns(ctx context.Context, opts *interfaces.ListOptions) ([]*models.AnalysisRun, error) {
	query := badgerhold.Where("ID").Ne("") // Select all

	if opts != nil {
		if opts.Source != "" {
			query = query.And("Source").Eq(models.RunSource(opts.Source))
		}
		if opts.Status != "" {
			query = query.And("Status").Eq(models.RunStatus(opts.Status))
		}
	}

	if opts != nil && opts.OrderDir == "asc" {
		query = query.SortBy("CreatedAt")
	} else {
		query = query.SortBy("CreatedAt").Reverse()
	}

	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var runs []models.AnalysisRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.AnalysisRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

// DeleteRunsBefore removes terminal runs created before the cutoff.
// Runs still in progress are never removed.
func (s *RunStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var runs []models.AnalysisRun
	if err := s.db.Store().Find(&runs, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find expired runs: %w", err)
	}

	deleted := 0
	for i := range runs {
		if runs[i].Status == models.RunStatusRunning {
			continue
		}
		if err := s.DeleteRun(ctx, runs[i].ID); err != nil {
			s.logger.Warn().Err(err).Str("run_id", runs[i].ID).Msg("Failed to delete expired run")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// DeleteRunsBeyond keeps the newest runs and removes the rest.
// Runs still in progress are never removed.
func (s *RunStorage) DeleteRunsBeyond(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	runs, err := s.ListRuns(ctx, nil)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, run := range runs[keep:] {
		if run.Status == models.RunStatusRunning {
			continue
		}
		if err := s.DeleteRun(ctx, run.ID); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to delete surplus run")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *RunStorage) CountRuns(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.AnalysisRun{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return int(count), nil
}

func (s *RunStorage) ClearAll(ctx context.Context) error {
	return s.db.Store().DeleteMatching(&models.AnalysisRun{}, nil)
}

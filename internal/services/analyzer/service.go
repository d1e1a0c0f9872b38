package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/deplog"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Service runs dependency log analyses and persists the results
type Service struct {
	storage interfaces.StorageManager
	events  interfaces.EventService
	scanner *deplog.Scanner
	config  *common.Config
	logger  arbor.ILogger

	// Serializes analyses so only one batch of logs is held in memory at a time
	mu sync.Mutex
}

// NewService creates a new analyzer service
func NewService(storage interfaces.StorageManager, eventService interfaces.EventService, config *common.Config, logger arbor.ILogger) interfaces.AnalyzerService {
	return &Service{
		storage: storage,
		events:  eventService,
		scanner: deplog.NewScannerWithProvider(logger, config.Analysis.ProviderSentinel),
		config:  config,
		logger:  logger,
	}
}

// AnalyzeArchive analyzes dependency logs found inside a ZIP archive
func (s *Service) AnalyzeArchive(ctx context.Context, label string, data []byte) (*models.AnalysisRun, error) {
	maxBytes := s.config.Analysis.MaxArchiveSizeMB * 1024 * 1024
	if len(data) > maxBytes {
		return nil, fmt.Errorf("archive exceeds maximum size of %d MB", s.config.Analysis.MaxArchiveSizeMB)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run := models.NewAnalysisRun(models.RunSourceArchive, label)
	if err := s.startRun(ctx, run); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, run, "discovering", 0)

	records, err := s.scanner.ScanArchive(data)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	return s.finishRun(ctx, run, records)
}

// AnalyzeUploads analyzes individually uploaded log files
func (s *Service) AnalyzeUploads(ctx context.Context, label string, files map[string]string) (*models.AnalysisRun, error) {
	if len(files) > s.config.Analysis.MaxUploadFiles {
		return nil, fmt.Errorf("too many files: limit is %d per batch", s.config.Analysis.MaxUploadFiles)
	}
	maxBytes := s.config.Analysis.MaxUploadSizeMB * 1024 * 1024
	for name, content := range files {
		if len(content) > maxBytes {
			return nil, fmt.Errorf("file %s exceeds maximum size of %d MB", name, s.config.Analysis.MaxUploadSizeMB)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run := models.NewAnalysisRun(models.RunSourceUpload, label)
	if err := s.startRun(ctx, run); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, run, "discovering", 0)

	records := s.scanner.ParseUploadedLogs(files)

	return s.finishRun(ctx, run, records)
}

// AnalyzeDirectory analyzes dependency logs found under a local directory
func (s *Service) AnalyzeDirectory(ctx context.Context, root string) (*models.AnalysisRun, error) {
	if !s.config.ScanRootAllowed(root) {
		return nil, fmt.Errorf("directory %s is outside the configured scan roots", root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run := models.NewAnalysisRun(models.RunSourceDirectory, root)
	if err := s.startRun(ctx, run); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, run, "discovering", 0)

	records, err := s.scanner.ScanDirectory(root)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	return s.finishRun(ctx, run, records)
}

// GetRun returns a stored run by ID
func (s *Service) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	return s.storage.RunStorage().GetRun(ctx, id)
}

// ListRuns returns stored runs
func (s *Service) ListRuns(ctx context.Context, opts *interfaces.ListOptions) ([]*models.AnalysisRun, error) {
	return s.storage.RunStorage().ListRuns(ctx, opts)
}

// DeleteRun removes a stored run
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	run, err := s.storage.RunStorage().GetRun(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.RunStorage().DeleteRun(ctx, id); err != nil {
		return err
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("source", string(run.Source)).
		Msg("Analysis run deleted")

	event := interfaces.Event{
		Type: interfaces.EventRunDeleted,
		Payload: map[string]interface{}{
			"run_id":    run.ID,
			"source":    string(run.Source),
			"timestamp": time.Now(),
		},
	}
	s.events.Publish(ctx, event)

	return nil
}

// startRun persists the new run and announces it
func (s *Service) startRun(ctx context.Context, run *models.AnalysisRun) error {
	if err := s.storage.RunStorage().SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("source", string(run.Source)).
		Str("label", run.Label).
		Msg("Analysis run started")

	event := interfaces.Event{
		Type: interfaces.EventRunStarted,
		Payload: map[string]interface{}{
			"run_id":    run.ID,
			"source":    string(run.Source),
			"label":     run.Label,
			"status":    string(run.Status),
			"timestamp": time.Now(),
		},
	}
	s.events.Publish(ctx, event)

	return nil
}

// finishRun aggregates the discovered records and stores the outcome. An
// empty batch fails the run before the aggregator is reached.
func (s *Service) finishRun(ctx context.Context, run *models.AnalysisRun, records []models.DependencyRecord) (*models.AnalysisRun, error) {
	if len(records) == 0 {
		s.failRun(ctx, run, models.ErrNoRecords)
		return nil, models.ErrNoRecords
	}

	s.publishProgress(ctx, run, "aggregating", len(records))

	tables, err := deplog.AggregateTop(records, s.config.Analysis.TopFMCount)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, err
	}

	run.Complete(tables, len(records))
	if err := s.storage.RunStorage().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run results: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Int("records", run.RecordCount).
		Int("unique_fms", len(tables.UniqueFMs)).
		Msg("Analysis run completed")

	event := interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: map[string]interface{}{
			"run_id":       run.ID,
			"source":       string(run.Source),
			"status":       string(run.Status),
			"record_count": run.RecordCount,
			"unique_fms":   len(tables.UniqueFMs),
			"timestamp":    time.Now(),
		},
	}
	s.events.Publish(ctx, event)

	return run, nil
}

// failRun marks a run as failed and announces it. The original error is
// reported to the caller, so storage problems here are only logged.
func (s *Service) failRun(ctx context.Context, run *models.AnalysisRun, cause error) {
	run.Fail(cause)
	if err := s.storage.RunStorage().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to persist failed run")
	}

	s.logger.Warn().
		Err(cause).
		Str("run_id", run.ID).
		Str("source", string(run.Source)).
		Msg("Analysis run failed")

	event := interfaces.Event{
		Type: interfaces.EventRunFailed,
		Payload: map[string]interface{}{
			"run_id":    run.ID,
			"source":    string(run.Source),
			"status":    string(run.Status),
			"error":     cause.Error(),
			"timestamp": time.Now(),
		},
	}
	s.events.Publish(ctx, event)
}

func (s *Service) publishProgress(ctx context.Context, run *models.AnalysisRun, stage string, records int) {
	event := interfaces.Event{
		Type: interfaces.EventAnalysisProgress,
		Payload: map[string]interface{}{
			"run_id":    run.ID,
			"source":    string(run.Source),
			"stage":     stage,
			"records":   records,
			"timestamp": time.Now(),
		},
	}
	s.events.Publish(ctx, event)
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// RetentionJobName is the scheduler entry that prunes stored analysis runs
const RetentionJobName = "run_retention"

// NewRetentionJob builds the cleanup handler enforcing the retention policy:
// runs older than the configured max age go first, then the run count is
// trimmed down to the configured maximum.
func NewRetentionJob(storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) func() error {
	return func() error {
		ctx := context.Background()

		cutoff := time.Now().Add(-config.MaxAgeDuration())
		byAge, err := storage.RunStorage().DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("age cleanup failed: %w", err)
		}

		byCount := 0
		if config.Retention.MaxRuns > 0 {
			byCount, err = storage.RunStorage().DeleteRunsBeyond(ctx, config.Retention.MaxRuns)
			if err != nil {
				return fmt.Errorf("count cleanup failed: %w", err)
			}
		}

		if byAge+byCount > 0 {
			logger.Info().
				Int("expired", byAge).
				Int("surplus", byCount).
				Msg("Retention cleanup removed runs")
		} else {
			logger.Debug().Msg("Retention cleanup found nothing to remove")
		}

		// Reclaim value log space freed by the deletes
		if err := storage.Maintain(); err != nil {
			logger.Warn().Err(err).Msg("Storage maintenance after cleanup failed")
		}

		return nil
	}
}

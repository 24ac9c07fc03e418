package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// RetentionJob prunes archived cycles older than the retention window. The
// snapshot log is append-only and is never pruned; only the raw per-cycle
// archive, which dominates storage, ages out.
type RetentionJob struct {
	repo          archive.Repository
	retentionDays int
	logger        *logger.Logger
}

// NewRetentionJob creates the archive retention job.
func NewRetentionJob(repo archive.Repository, retentionDays int, log *logger.Logger) *RetentionJob {
	return &RetentionJob{repo: repo, retentionDays: retentionDays, logger: log}
}

func (j *RetentionJob) Name() string {
	return "archive_retention"
}

// Schedule runs nightly at 02:00.
func (j *RetentionJob) Schedule() string {
	return "0 0 2 * * *"
}

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays).Format("2006-01-02")

	removed, err := j.repo.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive retention failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"cutoff":  cutoff,
		"removed": removed,
	}).Info("Archive retention complete")
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// UniverseRefreshJob rebuilds the tradable instrument set before the open
// so the first cycle of the session never waits on reference data.
type UniverseRefreshJob struct {
	service  *universe.Service
	location *time.Location
	logger   *logger.Logger
}

// NewUniverseRefreshJob creates the pre-open refresh job. loc is the
// exchange timezone used to pick the session date.
func NewUniverseRefreshJob(service *universe.Service, loc *time.Location, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{service: service, location: loc, logger: log}
}

func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule runs at 08:00 exchange-local on weekdays, well before the open.
func (j *UniverseRefreshJob) Schedule() string {
	return "0 0 8 * * 1-5"
}

func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	sessionDate := time.Now().In(j.location).Format("2006-01-02")

	u, err := j.service.Refresh(ctx, sessionDate)
	if err != nil {
		return fmt.Errorf("universe refresh failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"session":  sessionDate,
		"tradable": u.Count(),
	}).Info("Pre-open universe ready")
	return nil
}

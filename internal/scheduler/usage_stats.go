package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/modules/materials"
)

// defaultStatsWeeks is the rolling window width used by the nightly refresh.
const defaultStatsWeeks = 2

// UsageStatsJob recomputes material usage statistics after the snapshot has
// been rebuilt, so the morning reports reflect yesterday's production.
type UsageStatsJob struct {
	log     zerolog.Logger
	service *materials.Service
}

// NewUsageStatsJob creates a new usage statistics refresh job
func NewUsageStatsJob(service *materials.Service, log zerolog.Logger) *UsageStatsJob {
	return &UsageStatsJob{
		log:     log.With().Str("job", "usage_stats").Logger(),
		service: service,
	}
}

// Name returns the job name
func (j *UsageStatsJob) Name() string {
	return "usage_stats"
}

// Run recomputes usage statistics for every stockcode
func (j *UsageStatsJob) Run() error {
	startTime := time.Now()

	stats, err := j.service.UsageStatistics(defaultStatsWeeks)
	if err != nil {
		return fmt.Errorf("usage statistics refresh failed: %w", err)
	}

	j.log.Info().
		Int("stockcodes", len(stats)).
		Dur("duration", time.Since(startTime)).
		Msg("Material usage statistics refreshed")
	return nil
}

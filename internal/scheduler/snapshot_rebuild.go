package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/modules/batches"
)

// SnapshotRebuildJob rebuilds the daily production matrix snapshot from the
// batch records. Runs nightly so rolling aggregations never recount batches
// on the request path.
type SnapshotRebuildJob struct {
	log     zerolog.Logger
	service *batches.Service
	start   time.Time
}

// NewSnapshotRebuildJob creates a new snapshot rebuild job
func NewSnapshotRebuildJob(service *batches.Service, start time.Time, log zerolog.Logger) *SnapshotRebuildJob {
	return &SnapshotRebuildJob{
		log:     log.With().Str("job", "snapshot_rebuild").Logger(),
		service: service,
		start:   start,
	}
}

// Name returns the job name
func (j *SnapshotRebuildJob) Name() string {
	return "snapshot_rebuild"
}

// Run rebuilds the snapshot from the matrix start date through today
func (j *SnapshotRebuildJob) Run() error {
	startTime := time.Now()
	j.log.Info().Msg("Rebuilding batch production snapshot")

	if err := j.service.RebuildSnapshot(j.start, time.Now()); err != nil {
		return fmt.Errorf("snapshot rebuild failed: %w", err)
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Batch production snapshot rebuilt")
	return nil
}

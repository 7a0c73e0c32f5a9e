package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs. Every run is recorded in the job
// history when a history repository is attached.
type Scheduler struct {
	cron    *cron.Cron
	history *HistoryRepository
	log     zerolog.Logger
}

// New creates a new scheduler
func New(history *HistoryRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 2 * * MON-FRI"  - 2 AM weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runTracked(job)
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	s.runTracked(job)
	return nil
}

func (s *Scheduler) runTracked(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	run := s.recordStart(job.Name())
	err := job.Run()
	s.recordFinish(run, err)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	}
}

func (s *Scheduler) recordStart(jobName string) string {
	if s.history == nil {
		return ""
	}
	runID, err := s.history.RecordStart(jobName)
	if err != nil {
		s.log.Warn().Err(err).Str("job", jobName).Msg("Failed to record job start")
		return ""
	}
	return runID
}

func (s *Scheduler) recordFinish(runID string, jobErr error) {
	if s.history == nil || runID == "" {
		return
	}
	if err := s.history.RecordFinish(runID, jobErr); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to record job finish")
	}
}

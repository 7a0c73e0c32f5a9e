package scheduler

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobRun is one recorded execution of a scheduled job.
type JobRun struct {
	ID         string     `json:"id"`
	Job        string     `json:"job"`
	Status     string     `json:"status"`
	Detail     *string    `json:"detail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// HistoryRepository records job runs in the cache database.
type HistoryRepository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewHistoryRepository creates a new job history repository
func NewHistoryRepository(cacheDB *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "job_history").Logger(),
	}
}

// RecordStart inserts a running entry and returns its run ID
func (r *HistoryRepository) RecordStart(job string) (string, error) {
	runID := uuid.NewString()
	_, err := r.cacheDB.Exec(`
		INSERT INTO job_history (id, job, status, started_at)
		VALUES (?, ?, 'running', ?)
	`, runID, job, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to record job start: %w", err)
	}
	return runID, nil
}

// RecordFinish marks a run completed or failed
func (r *HistoryRepository) RecordFinish(runID string, jobErr error) error {
	status := "completed"
	var detail *string
	if jobErr != nil {
		status = "failed"
		msg := jobErr.Error()
		detail = &msg
	}

	_, err := r.cacheDB.Exec(`
		UPDATE job_history SET status = ?, detail = ?, finished_at = ? WHERE id = ?
	`, status, detail, time.Now().Unix(), runID)
	if err != nil {
		return fmt.Errorf("failed to record job finish: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs for a job, newest first
func (r *HistoryRepository) RecentRuns(job string, limit int) ([]JobRun, error) {
	rows, err := r.cacheDB.Query(`
		SELECT id, job, status, detail, started_at, finished_at
		FROM job_history
		WHERE job = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var run JobRun
		var detail sql.NullString
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&run.ID, &run.Job, &run.Status, &detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		if detail.Valid {
			run.Detail = &detail.String
		}
		run.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes runs older than the retention window
func (r *HistoryRepository) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := r.cacheDB.Exec(`DELETE FROM job_history WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune job history: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

package scheduler

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantfloor/lottrack/pkg/logger"
)

func setupHistoryTestDB(t *testing.T) *HistoryRepository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE job_history (
			id          TEXT PRIMARY KEY,
			job         TEXT NOT NULL,
			status      TEXT NOT NULL,
			detail      TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER
		)
	`)
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error", Pretty: false})
	return NewHistoryRepository(db, log)
}

func TestHistoryRepository(t *testing.T) {
	repo := setupHistoryTestDB(t)

	t.Run("successful run lifecycle", func(t *testing.T) {
		runID, err := repo.RecordStart("snapshot_rebuild")
		require.NoError(t, err)
		require.NotEmpty(t, runID)

		require.NoError(t, repo.RecordFinish(runID, nil))

		runs, err := repo.RecentRuns("snapshot_rebuild", 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "completed", runs[0].Status)
		assert.Nil(t, runs[0].Detail)
		assert.NotNil(t, runs[0].FinishedAt)
	})

	t.Run("failed run records the error", func(t *testing.T) {
		runID, err := repo.RecordStart("usage_stats")
		require.NoError(t, err)

		require.NoError(t, repo.RecordFinish(runID, errors.New("refresh blew up")))

		runs, err := repo.RecentRuns("usage_stats", 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "failed", runs[0].Status)
		require.NotNil(t, runs[0].Detail)
		assert.Equal(t, "refresh blew up", *runs[0].Detail)
	})

	t.Run("prune removes old runs only", func(t *testing.T) {
		deleted, err := repo.Prune(time.Hour)
		require.NoError(t, err)
		assert.Zero(t, deleted)

		runs, err := repo.RecentRuns("snapshot_rebuild", 10)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

type countingJob struct {
	runs int
	fail bool
}

func (j *countingJob) Run() error {
	j.runs++
	if j.fail {
		return errors.New("job failed")
	}
	return nil
}

func (j *countingJob) Name() string { return "counting" }

func TestSchedulerRunNow(t *testing.T) {
	repo := setupHistoryTestDB(t)
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	sched := New(repo, log)

	job := &countingJob{}
	require.NoError(t, sched.RunNow(job))
	assert.Equal(t, 1, job.runs)

	runs, err := repo.RecentRuns("counting", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)

	t.Run("failure is recorded, not returned", func(t *testing.T) {
		failing := &countingJob{fail: true}
		require.NoError(t, sched.RunNow(failing))

		runs, err := repo.RecentRuns("counting", 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)

		statuses := []string{runs[0].Status, runs[1].Status}
		assert.Contains(t, statuses, "failed")
		assert.Contains(t, statuses, "completed")
	})
}

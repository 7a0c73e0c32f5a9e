package batches

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantfloor/lottrack/internal/events"
	"github.com/plantfloor/lottrack/pkg/logger"
)

type fixedComps []string

func (f fixedComps) ListComps() ([]string, error) {
	return f, nil
}

func setupPlantTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE batches (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			comp       TEXT NOT NULL,
			batch_no   TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE TABLE batch_snapshots (
			name       TEXT PRIMARY KEY,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	require.NoError(t, err)

	return db
}

func newTestBatchService(t *testing.T, comps CompLister) (*Service, *sql.DB) {
	db := setupPlantTestDB(t)
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewBatchRepository(db, log)
	snapshots := NewSnapshotRepository(db, log)
	return NewService(repo, snapshots, comps, events.NewManager(log), log), db
}

func seedBatches(t *testing.T, db *sql.DB, comp string, batchNos ...string) {
	for _, no := range batchNos {
		_, err := db.Exec(`INSERT INTO batches (comp, batch_no) VALUES (?, ?)`, comp, no)
		require.NoError(t, err)
	}
}

func TestMadeByDate(t *testing.T) {
	svc, db := newTestBatchService(t, fixedComps{"3077"})

	seedBatches(t, db, "3077",
		"19010101", // Jan 1
		"19010102", // Jan 1 again
		"19010301", // Jan 3
		"19021001", // Feb 10, outside range
		"Do not use",
	)

	series, err := svc.MadeByDate("3077", day(2019, 1, 1), day(2019, 1, 5))
	require.NoError(t, err)

	assert.Equal(t, "3077", series.Comp)
	assert.Equal(t, []int{2, 0, 1, 0, 0}, series.Counts)
	assert.Equal(t, day(2019, 1, 3), series.Date(2))

	t.Run("inverted range is rejected", func(t *testing.T) {
		_, err := svc.MadeByDate("3077", day(2019, 2, 1), day(2019, 1, 1))
		assert.Error(t, err)
	})
}

func TestRebuildSnapshotAndRollingWeeks(t *testing.T) {
	svc, db := newTestBatchService(t, fixedComps{"3077", "3001"})

	// Three weeks of production starting Monday 2019-01-07
	seedBatches(t, db, "3077",
		"19010701", "19010801", // week 1: 2 batches
		"19011401",             // week 2: 1 batch
		"19012101", "19012202", // week 3: 2 batches
	)
	seedBatches(t, db, "3001",
		"19011501", // week 2 only
	)

	require.NoError(t, svc.RebuildSnapshot(day(2019, 1, 7), day(2019, 1, 27)))

	t.Run("one-week windows", func(t *testing.T) {
		windows, err := svc.ByRollingWeeks(1)
		require.NoError(t, err)
		require.Len(t, windows, 3)

		assert.Equal(t, day(2019, 1, 7), windows[0].Start)
		assert.Equal(t, day(2019, 1, 14), windows[0].End)
		assert.Equal(t, 2, windows[0].Counts["3077"])
		assert.Equal(t, 0, windows[0].Counts["3001"])

		assert.Equal(t, 1, windows[1].Counts["3077"])
		assert.Equal(t, 1, windows[1].Counts["3001"])

		assert.Equal(t, 2, windows[2].Counts["3077"])
	})

	t.Run("two-week windows span adjacent weeks", func(t *testing.T) {
		windows, err := svc.ByRollingWeeks(2)
		require.NoError(t, err)
		require.Len(t, windows, 2)

		assert.Equal(t, 3, windows[0].Counts["3077"])
		assert.Equal(t, 1, windows[0].Counts["3001"])
		assert.Equal(t, 3, windows[1].Counts["3077"])
	})

	t.Run("window wider than the matrix yields nothing", func(t *testing.T) {
		windows, err := svc.ByRollingWeeks(52)
		require.NoError(t, err)
		assert.Empty(t, windows)
	})
}

func TestByRollingWeeksWithoutSnapshot(t *testing.T) {
	svc, _ := newTestBatchService(t, fixedComps{"3077"})

	_, err := svc.ByRollingWeeks(1)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLaborByDay(t *testing.T) {
	svc, db := newTestBatchService(t, fixedComps{"3077", "2004"})

	// One 3077 batch on the last day; 2004 has no labor profile and is
	// skipped by the labor model.
	seedBatches(t, db, "3077", "19011301")
	seedBatches(t, db, "2004", "19011301")

	require.NoError(t, svc.RebuildSnapshot(day(2019, 1, 7), day(2019, 1, 13)))

	analysis, err := svc.LaborByDay(3)
	require.NoError(t, err)
	require.Len(t, analysis.Current, 3)
	require.Len(t, analysis.Proposed, 3)

	// Idle days cost nothing
	assert.Zero(t, analysis.Current[0].TotalHours)
	assert.Zero(t, analysis.Current[1].TotalHours)

	last := analysis.Current[2]
	assert.Equal(t, "2019-01-13", last.Date)
	assert.InDelta(t, 36.0/60, last.MajorsHours, 1e-9)
	assert.InDelta(t, 20.0/60, last.MinorsHours, 1e-9)

	// The proposed procedure is strictly cheaper on production days
	assert.Less(t, analysis.Proposed[2].TotalHours, last.TotalHours)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package batches

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// dailyMatrixSnapshot is the cache key for the production matrix.
const dailyMatrixSnapshot = "daily_matrix"

// ErrNoSnapshot is returned when no matrix has been built yet.
var ErrNoSnapshot = errors.New("no batch matrix snapshot available")

// SnapshotRepository persists the daily production matrix to the cache
// database, msgpack-encoded. The snapshot is rebuildable at any time from
// the batches table; losing it costs a rebuild, nothing more.
type SnapshotRepository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(cacheDB *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "batch_snapshots").Logger(),
	}
}

// SaveDailyMatrix stores the matrix, replacing any previous snapshot
func (r *SnapshotRepository) SaveDailyMatrix(matrix *DailyMatrix) error {
	payload, err := msgpack.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("failed to encode matrix snapshot: %w", err)
	}

	start, err := matrix.StartDate()
	if err != nil {
		return fmt.Errorf("matrix has invalid start date: %w", err)
	}
	end := start.AddDate(0, 0, matrix.Days-1)

	query := `
		INSERT INTO batch_snapshots (name, start_date, end_date, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			start_date = excluded.start_date,
			end_date   = excluded.end_date,
			payload    = excluded.payload,
			created_at = excluded.created_at
	`

	_, err = r.cacheDB.Exec(query,
		dailyMatrixSnapshot,
		matrix.Start,
		end.Format("2006-01-02"),
		payload,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save matrix snapshot: %w", err)
	}

	r.log.Info().
		Str("start", matrix.Start).
		Int("days", matrix.Days).
		Int("comps", len(matrix.Comps)).
		Int("bytes", len(payload)).
		Msg("Batch matrix snapshot saved")

	return nil
}

// LoadDailyMatrix retrieves the current matrix snapshot
func (r *SnapshotRepository) LoadDailyMatrix() (*DailyMatrix, error) {
	var payload []byte
	err := r.cacheDB.QueryRow(
		`SELECT payload FROM batch_snapshots WHERE name = ?`,
		dailyMatrixSnapshot,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix snapshot: %w", err)
	}

	var matrix DailyMatrix
	if err := msgpack.Unmarshal(payload, &matrix); err != nil {
		return nil, fmt.Errorf("failed to decode matrix snapshot: %w", err)
	}

	return &matrix, nil
}

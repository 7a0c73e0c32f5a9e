package batches

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// BatchRepository handles batch database operations
type BatchRepository struct {
	plantDB *sql.DB
	log     zerolog.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(plantDB *sql.DB, log zerolog.Logger) *BatchRepository {
	return &BatchRepository{
		plantDB: plantDB,
		log:     log.With().Str("repo", "batches").Logger(),
	}
}

// GetByComp returns all recorded batches for a comp
func (r *BatchRepository) GetByComp(comp string) ([]Batch, error) {
	query := `
		SELECT id, comp, batch_no FROM batches
		WHERE comp = ?
		ORDER BY batch_no
	`

	rows, err := r.plantDB.Query(query, strings.TrimSpace(comp))
	if err != nil {
		return nil, fmt.Errorf("failed to get batches for comp %s: %w", comp, err)
	}
	defer rows.Close()

	var result []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Comp, &b.BatchNo); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return result, nil
}

// Create inserts a new batch record
func (r *BatchRepository) Create(comp, batchNo string) error {
	comp = strings.TrimSpace(comp)
	batchNo = strings.TrimSpace(batchNo)
	if comp == "" || batchNo == "" {
		return fmt.Errorf("comp and batch number are required")
	}

	_, err := r.plantDB.Exec(
		`INSERT INTO batches (comp, batch_no) VALUES (?, ?)`,
		comp, batchNo,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	r.log.Info().Str("comp", comp).Str("batch_no", batchNo).Msg("Batch recorded")
	return nil
}

package materials

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CompositionRepository reads the composition recipes from the plant database.
type CompositionRepository struct {
	plantDB *sql.DB
	log     zerolog.Logger
}

// NewCompositionRepository creates a new composition repository
func NewCompositionRepository(plantDB *sql.DB, log zerolog.Logger) *CompositionRepository {
	return &CompositionRepository{
		plantDB: plantDB,
		log:     log.With().Str("repo", "materials").Logger(),
	}
}

// ListComps returns every comp tracked by the plant, in comp order
func (r *CompositionRepository) ListComps() ([]string, error) {
	rows, err := r.plantDB.Query(`SELECT comp FROM compositions ORDER BY comp`)
	if err != nil {
		return nil, fmt.Errorf("failed to list comps: %w", err)
	}
	defer rows.Close()

	var comps []string
	for rows.Next() {
		var comp string
		if err := rows.Scan(&comp); err != nil {
			return nil, fmt.Errorf("failed to scan comp: %w", err)
		}
		comps = append(comps, comp)
	}
	return comps, rows.Err()
}

// GetComposition returns one composition with its time-study lot counts
func (r *CompositionRepository) GetComposition(comp string) (*Composition, error) {
	row := r.plantDB.QueryRow(`
		SELECT comp, major_lots, minor_lots FROM compositions WHERE comp = ?
	`, comp)

	var c Composition
	var major, minor sql.NullInt64
	if err := row.Scan(&c.Comp, &major, &minor); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("unknown comp %q", comp)
		}
		return nil, fmt.Errorf("failed to get composition: %w", err)
	}
	if major.Valid {
		v := int(major.Int64)
		c.MajorLots = &v
	}
	if minor.Valid {
		v := int(minor.Int64)
		c.MinorLots = &v
	}
	return &c, nil
}

// GetBOM returns the material lines of one composition
func (r *CompositionRepository) GetBOM(comp string) ([]BOMLine, error) {
	rows, err := r.plantDB.Query(`
		SELECT comp, stock_code, material, lbs
		FROM composition_materials
		WHERE comp = ?
		ORDER BY id
	`, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to get BOM for comp %s: %w", comp, err)
	}
	defer rows.Close()
	return scanBOMLines(rows)
}

// LinesForStockcode returns every BOM line that uses a stockcode, across comps
func (r *CompositionRepository) LinesForStockcode(stockCode string) ([]BOMLine, error) {
	rows, err := r.plantDB.Query(`
		SELECT comp, stock_code, material, lbs
		FROM composition_materials
		WHERE stock_code = ?
		ORDER BY comp
	`, stockCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines for stockcode %s: %w", stockCode, err)
	}
	defer rows.Close()
	return scanBOMLines(rows)
}

// ListStockcodes returns the unique stockcodes across all recipes with a
// representative material name for each
func (r *CompositionRepository) ListStockcodes() ([]BOMLine, error) {
	rows, err := r.plantDB.Query(`
		SELECT '' AS comp, stock_code, MIN(material) AS material, '0' AS lbs
		FROM composition_materials
		GROUP BY stock_code
		ORDER BY stock_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stockcodes: %w", err)
	}
	defer rows.Close()
	return scanBOMLines(rows)
}

func scanBOMLines(rows *sql.Rows) ([]BOMLine, error) {
	var lines []BOMLine
	for rows.Next() {
		var line BOMLine
		var lbs string
		if err := rows.Scan(&line.Comp, &line.StockCode, &line.Material, &lbs); err != nil {
			return nil, fmt.Errorf("failed to scan BOM line: %w", err)
		}
		parsed, err := decimal.NewFromString(lbs)
		if err != nil {
			return nil, fmt.Errorf("invalid lbs value %q for stockcode %s: %w", lbs, line.StockCode, err)
		}
		line.Lbs = parsed
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

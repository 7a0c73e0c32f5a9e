package lots

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// lotTransactionColumns is the column list for lot_transactions reads.
// Order must match scanTransaction.
const lotTransactionColumns = `trn_type, trn_date, quantity`

// LotRepository reads the raw-material transaction ledger. Rows come back
// ordered by transaction date with rowid as the tie-break, so same-date
// transactions keep the order the ERP recorded them in.
type LotRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewLotRepository creates a new lot repository
func NewLotRepository(ledgerDB *sql.DB, log zerolog.Logger) *LotRepository {
	return &LotRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "lots").Logger(),
	}
}

// ListLots returns the unique lots for a stockcode, in order of first
// transaction date. Lots whose activity predates minYear are excluded.
func (r *LotRepository) ListLots(stockCode string, minYear int) ([]string, error) {
	query := `
		SELECT lot FROM lot_transactions
		WHERE stock_code = ?
		  AND CAST(strftime('%Y', trn_date) AS INTEGER) >= ?
		ORDER BY trn_date, id
	`

	rows, err := r.ledgerDB.Query(query, strings.TrimSpace(stockCode), minYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var lots []string
	for rows.Next() {
		var lot string
		if err := rows.Scan(&lot); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		if !seen[lot] {
			seen[lot] = true
			lots = append(lots, lot)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}

// GetTransactions returns the receipt, issuance and adjustment records for a
// lot, ordered by date ascending. Other transaction kinds are filtered out
// here, before the core ever sees them.
func (r *LotRepository) GetTransactions(stockCode, lot string) ([]TransactionRecord, error) {
	query := `
		SELECT ` + lotTransactionColumns + ` FROM lot_transactions
		WHERE stock_code = ? AND lot = ?
		  AND trn_type IN ('R', 'I', 'A')
		ORDER BY trn_date, id
	`

	rows, err := r.ledgerDB.Query(query, strings.TrimSpace(stockCode), strings.TrimSpace(lot))
	if err != nil {
		return nil, fmt.Errorf("failed to get lot transactions: %w", err)
	}
	defer rows.Close()

	var txns []TransactionRecord
	for rows.Next() {
		rec, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// Create inserts a new ledger record
func (r *LotRepository) Create(stockCode, lot string, rec TransactionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	query := `
		INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.ledgerDB.Exec(query,
		strings.TrimSpace(stockCode),
		strings.TrimSpace(lot),
		string(rec.Type),
		rec.Date.Format("2006-01-02"),
		rec.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.log.Debug().
		Str("stock_code", stockCode).
		Str("lot", lot).
		Str("type", string(rec.Type)).
		Float64("quantity", rec.Quantity).
		Msg("Transaction recorded")

	return nil
}

func (r *LotRepository) scanTransaction(rows *sql.Rows) (TransactionRecord, error) {
	var (
		typeCode string
		dateStr  string
		quantity float64
	)
	if err := rows.Scan(&typeCode, &dateStr, &quantity); err != nil {
		return TransactionRecord{}, err
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("invalid trn_date %q: %w", dateStr, err)
	}

	return TransactionRecord{
		Type:     TrnTypeFromCode(typeCode),
		Date:     date,
		Quantity: quantity,
	}, nil
}

package lots

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantfloor/lottrack/pkg/logger"
)

func setupLedgerTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE lot_transactions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_code TEXT NOT NULL,
			lot        TEXT NOT NULL,
			trn_type   TEXT NOT NULL,
			trn_date   TEXT NOT NULL,
			quantity   REAL NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) (*LotRepository, *sql.DB) {
	db := setupLedgerTestDB(t)
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	return NewLotRepository(db, log), db
}

func TestLotRepository_ListLots(t *testing.T) {
	repo, db := newTestRepo(t)

	seed := []struct {
		lot  string
		date string
	}{
		{"LOT-C", "2019-03-01"},
		{"LOT-A", "2019-01-15"},
		{"LOT-A", "2019-02-01"},
		{"LOT-B", "2019-02-10"},
		{"OLD-LOT", "2001-06-01"},
	}
	for _, s := range seed {
		_, err := db.Exec(`
			INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
			VALUES ('000954', ?, 'R', ?, 100)
		`, s.lot, s.date)
		require.NoError(t, err)
	}

	t.Run("unique lots in first-activity order", func(t *testing.T) {
		lots, err := repo.ListLots("000954", 2006)
		require.NoError(t, err)
		assert.Equal(t, []string{"LOT-A", "LOT-B", "LOT-C"}, lots)
	})

	t.Run("old activity is excluded by min year", func(t *testing.T) {
		lots, err := repo.ListLots("000954", 2000)
		require.NoError(t, err)
		assert.Contains(t, lots, "OLD-LOT")
	})

	t.Run("unknown stockcode returns nothing", func(t *testing.T) {
		lots, err := repo.ListLots("999999", 2006)
		require.NoError(t, err)
		assert.Empty(t, lots)
	})
}

func TestLotRepository_GetTransactions(t *testing.T) {
	repo, db := newTestRepo(t)

	seed := []struct {
		trnType string
		date    string
		qty     float64
	}{
		{"R", "2020-01-01", 500},
		{"I", "2020-01-05", 100},
		{"S", "2020-01-06", 999}, // filtered out
		{"A", "2020-01-07", -25},
		{"I", "2020-01-05", 50}, // same date, later rowid
	}
	for _, s := range seed {
		_, err := db.Exec(`
			INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
			VALUES ('000954', 'LOT-A', ?, ?, ?)
		`, s.trnType, s.date, s.qty)
		require.NoError(t, err)
	}

	txns, err := repo.GetTransactions("000954", "LOT-A")
	require.NoError(t, err)
	require.Len(t, txns, 4)

	// Ordered by date with insertion order breaking the tie
	assert.Equal(t, TrnReceipt, txns[0].Type)
	assert.Equal(t, TrnIssuance, txns[1].Type)
	assert.Equal(t, 100.0, txns[1].Quantity)
	assert.Equal(t, TrnIssuance, txns[2].Type)
	assert.Equal(t, 50.0, txns[2].Quantity)
	assert.Equal(t, TrnAdjustment, txns[3].Type)

	t.Run("trims whitespace in keys", func(t *testing.T) {
		txns, err := repo.GetTransactions(" 000954 ", " LOT-A ")
		require.NoError(t, err)
		assert.Len(t, txns, 4)
	})
}

func TestLotRepository_Create(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.Create("000954", "LOT-NEW", rec(TrnReceipt, day(2021, 3, 15), 250))
	require.NoError(t, err)

	txns, err := repo.GetTransactions("000954", "LOT-NEW")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, day(2021, 3, 15), txns[0].Date)
	assert.Equal(t, 250.0, txns[0].Quantity)

	t.Run("invalid record is rejected", func(t *testing.T) {
		err := repo.Create("000954", "LOT-NEW", TransactionRecord{Type: "Z", Date: day(2021, 3, 16)})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

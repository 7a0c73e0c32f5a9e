package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	t.Run("ledger schema creates the transaction table", func(t *testing.T) {
		db := newTestDB(t, "ledger", ProfileLedger)
		require.NoError(t, db.Migrate())

		_, err := db.Conn().Exec(`
			INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
			VALUES ('000954', 'L1', 'R', '2020-01-01', 100)
		`)
		assert.NoError(t, err)
	})

	t.Run("plant schema seeds the twelve comps", func(t *testing.T) {
		db := newTestDB(t, "plant", ProfileStandard)
		require.NoError(t, db.Migrate())

		var comps int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM compositions`).Scan(&comps))
		assert.Equal(t, 12, comps)

		var lines int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM composition_materials`).Scan(&lines))
		assert.Greater(t, lines, 0)
	})

	t.Run("migration is idempotent", func(t *testing.T) {
		db := newTestDB(t, "cache", ProfileCache)
		require.NoError(t, db.Migrate())
		require.NoError(t, db.Migrate())
	})
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	t.Run("commit on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
				VALUES ('000954', 'L1', 'R', '2020-01-01', 100)
			`)
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM lot_transactions`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rollback on error", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
				VALUES ('000954', 'L2', 'R', '2020-02-01', 50)
			`); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)

		var count int
		require.NoError(t, db.Conn().QueryRow(
			`SELECT COUNT(*) FROM lot_transactions WHERE lot = 'L2'`,
		).Scan(&count))
		assert.Zero(t, count)
	})
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec(`
		INSERT INTO lot_transactions (stock_code, lot, trn_type, trn_date, quantity)
		VALUES ('000954', 'L1', 'R', '2020-01-01', 100)
	`)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "ledger-copy.db")
	require.NoError(t, db.BackupTo(dest))

	restored, err := New(Config{Path: dest, Profile: ProfileStandard, Name: "restored"})
	require.NoError(t, err)
	defer restored.Close()

	var count int
	require.NoError(t, restored.Conn().QueryRow(`SELECT COUNT(*) FROM lot_transactions`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

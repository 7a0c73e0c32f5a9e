package lots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysToFirstIssue(t *testing.T) {
	t.Run("reports days from receipt to first issuance", func(t *testing.T) {
		first, err := DaysToFirstIssue([]TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 500),
			rec(TrnAdjustment, day(2020, 1, 2), 5),
			rec(TrnIssuance, day(2020, 1, 8), 100),
			rec(TrnIssuance, day(2020, 1, 20), 100),
		})
		require.NoError(t, err)
		require.NotNil(t, first.Days)
		assert.Equal(t, 7, *first.Days)
		assert.Equal(t, day(2020, 1, 8), *first.FirstIssueDate)
		assert.Equal(t, day(2020, 1, 1), first.ReceiptDate)
	})

	t.Run("untouched lot reports absent values", func(t *testing.T) {
		first, err := DaysToFirstIssue([]TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 500),
			rec(TrnAdjustment, day(2020, 2, 1), -5),
		})
		require.NoError(t, err)
		assert.Nil(t, first.FirstIssueDate)
		assert.Nil(t, first.Days)
		assert.Equal(t, day(2020, 1, 1), first.ReceiptDate)
	})

	t.Run("empty sequence is invalid", func(t *testing.T) {
		_, err := DaysToFirstIssue(nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDaysToPercentIssued(t *testing.T) {
	txns := []TransactionRecord{
		rec(TrnReceipt, day(2020, 1, 1), 100),
		rec(TrnIssuance, day(2020, 1, 5), 40),
		rec(TrnIssuance, day(2020, 1, 15), 40),
		rec(TrnIssuance, day(2020, 1, 25), 20),
	}
	trace := UsageTrace{100, 60, 20, 0}

	t.Run("full consumption measured from first issue", func(t *testing.T) {
		pi, err := DaysToPercentIssued(txns, trace, 100)
		require.NoError(t, err)
		require.NotNil(t, pi.Days)
		// Threshold hit Jan 25, first issue Jan 5
		assert.Equal(t, 20, *pi.Days)
		assert.Equal(t, day(2020, 1, 25), *pi.ThresholdDate)
	})

	t.Run("partial threshold hit at first qualifying record", func(t *testing.T) {
		pi, err := DaysToPercentIssued(txns, trace, 50)
		require.NoError(t, err)
		require.NotNil(t, pi.Days)
		// 80% gone on Jan 15 is the first point at or past 50%
		assert.Equal(t, day(2020, 1, 15), *pi.ThresholdDate)
		assert.Equal(t, 10, *pi.Days)
	})

	t.Run("threshold never reached", func(t *testing.T) {
		short := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 100),
			rec(TrnIssuance, day(2020, 1, 5), 10),
		}
		pi, err := DaysToPercentIssued(short, UsageTrace{100, 90}, 50)
		require.NoError(t, err)
		assert.NotNil(t, pi.FirstIssueDate)
		assert.Nil(t, pi.ThresholdDate)
		assert.Nil(t, pi.Days)
	})

	t.Run("never issued lot reports all absent", func(t *testing.T) {
		idle := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 100),
		}
		pi, err := DaysToPercentIssued(idle, UsageTrace{100}, 100)
		require.NoError(t, err)
		assert.Nil(t, pi.FirstIssueDate)
		assert.Nil(t, pi.ThresholdDate)
		assert.Nil(t, pi.Days)
	})

	t.Run("percent outside range is invalid", func(t *testing.T) {
		_, err := DaysToPercentIssued(txns, trace, 0)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = DaysToPercentIssued(txns, trace, 101)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("misaligned trace is invalid", func(t *testing.T) {
		_, err := DaysToPercentIssued(txns, UsageTrace{100}, 100)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDaysTotal(t *testing.T) {
	now := day(2020, 6, 1)

	t.Run("consumed lot closes at last use", func(t *testing.T) {
		txns := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 100),
			rec(TrnIssuance, day(2020, 1, 31), 100),
		}
		lc, err := DaysTotal(txns, UsageTrace{100, 0}, 100, now)
		require.NoError(t, err)
		assert.Equal(t, 30, lc.DaysOfUse)
		assert.Equal(t, 30, lc.DaysTotal)
	})

	t.Run("active lot runs until now", func(t *testing.T) {
		txns := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 100),
			rec(TrnIssuance, day(2020, 1, 31), 40),
		}
		lc, err := DaysTotal(txns, UsageTrace{100, 60}, 100, now)
		require.NoError(t, err)
		assert.Equal(t, 30, lc.DaysOfUse)
		assert.Equal(t, 152, lc.DaysTotal)
	})

	t.Run("tolerance below full consumption closes the lot early", func(t *testing.T) {
		txns := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 100),
			rec(TrnIssuance, day(2020, 1, 31), 95),
		}
		lc, err := DaysTotal(txns, UsageTrace{100, 5}, 95, now)
		require.NoError(t, err)
		assert.Equal(t, 30, lc.DaysTotal)
	})

	t.Run("zero quantity lot is treated as still open", func(t *testing.T) {
		txns := []TransactionRecord{
			rec(TrnReceipt, day(2020, 1, 1), 0),
		}
		lc, err := DaysTotal(txns, UsageTrace{0}, 100, now)
		require.NoError(t, err)
		assert.Equal(t, 152, lc.DaysTotal)
	})
}

func TestMaterialTotalRemainPercent(t *testing.T) {
	t.Run("percent used is ceiling rounded", func(t *testing.T) {
		summary, err := MaterialTotalRemainPercent(UsageTrace{300, 200, 100})
		require.NoError(t, err)
		require.NotNil(t, summary.PercentUsed)
		// 200/300 is 66.7%, reported as 67
		assert.Equal(t, 67, *summary.PercentUsed)
		assert.Equal(t, 300, *summary.OriginalQuantity)
		assert.Equal(t, 100, *summary.RemainingQuantity)
	})

	t.Run("zero original quantity reports all absent", func(t *testing.T) {
		summary, err := MaterialTotalRemainPercent(UsageTrace{0, 0})
		require.NoError(t, err)
		assert.Nil(t, summary.OriginalQuantity)
		assert.Nil(t, summary.RemainingQuantity)
		assert.Nil(t, summary.PercentUsed)
	})

	t.Run("over-issued lot exceeds one hundred percent", func(t *testing.T) {
		summary, err := MaterialTotalRemainPercent(UsageTrace{100, -20})
		require.NoError(t, err)
		require.NotNil(t, summary.PercentUsed)
		assert.Equal(t, 120, *summary.PercentUsed)
	})

	t.Run("empty trace is invalid", func(t *testing.T) {
		_, err := MaterialTotalRemainPercent(nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

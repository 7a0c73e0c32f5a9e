package lots

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantfloor/lottrack/internal/events"
	"github.com/plantfloor/lottrack/pkg/logger"
)

// fakeSource serves canned transaction sequences keyed by lot
type fakeSource struct {
	lots map[string][]TransactionRecord
	ids  []string
}

func (f *fakeSource) ListLots(stockCode string, minYear int) ([]string, error) {
	return f.ids, nil
}

func (f *fakeSource) GetTransactions(stockCode, lot string) ([]TransactionRecord, error) {
	txns, ok := f.lots[lot]
	if !ok {
		return nil, fmt.Errorf("unknown lot %s", lot)
	}
	return txns, nil
}

func newTestService(source TransactionSource) *Service {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	svc := NewService(source, events.NewManager(log), log)
	svc.now = func() time.Time { return day(2020, 6, 1) }
	return svc
}

func TestAnalyzeLot(t *testing.T) {
	source := &fakeSource{
		lots: map[string][]TransactionRecord{
			"L1": {
				rec(TrnReceipt, day(2020, 1, 1), 100),
				rec(TrnIssuance, day(2020, 1, 5), 60),
				rec(TrnIssuance, day(2020, 1, 15), 40),
			},
		},
	}

	svc := newTestService(source)

	metrics, err := svc.AnalyzeLot("000954", "L1", 100, 100)
	require.NoError(t, err)

	assert.Equal(t, "000954", metrics.StockCode)
	assert.Equal(t, "L1", metrics.Lot)
	require.NotNil(t, metrics.OriginalQuantity)
	assert.Equal(t, 100, *metrics.OriginalQuantity)
	require.NotNil(t, metrics.RemainingQuantity)
	assert.Equal(t, 0, *metrics.RemainingQuantity)
	require.NotNil(t, metrics.PercentUsed)
	assert.Equal(t, 100, *metrics.PercentUsed)

	require.NotNil(t, metrics.DaysToFirstIssue)
	assert.Equal(t, 4, *metrics.DaysToFirstIssue)
	require.NotNil(t, metrics.DaysToPercentIssue)
	assert.Equal(t, 10, *metrics.DaysToPercentIssue)

	// Fully consumed, so the lifecycle closes at the last issuance
	assert.Equal(t, 14, metrics.DaysOfUse)
	assert.Equal(t, 14, metrics.DaysTotal)
}

func TestAnalyzeStockcode(t *testing.T) {
	t.Run("one bad lot does not abort the batch", func(t *testing.T) {
		source := &fakeSource{
			ids: []string{"GOOD", "BAD", "ALSO_GOOD"},
			lots: map[string][]TransactionRecord{
				"GOOD": {
					rec(TrnReceipt, day(2020, 1, 1), 100),
					rec(TrnIssuance, day(2020, 1, 5), 100),
				},
				"BAD": {
					// Out of date order, fails reconstruction
					rec(TrnReceipt, day(2020, 1, 5), 100),
					rec(TrnIssuance, day(2020, 1, 1), 100),
				},
				"ALSO_GOOD": {
					rec(TrnReceipt, day(2020, 2, 1), 200),
				},
			},
		}

		svc := newTestService(source)

		report, err := svc.AnalyzeStockcode("000954", 2006, 100, 100)
		require.NoError(t, err)

		assert.NotEmpty(t, report.RunID)
		assert.Len(t, report.Lots, 2)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "BAD", report.Failures[0].Lot)
	})

	t.Run("empty stockcode yields an empty report", func(t *testing.T) {
		svc := newTestService(&fakeSource{})

		report, err := svc.AnalyzeStockcode("999999", 2006, 100, 100)
		require.NoError(t, err)
		assert.Empty(t, report.Lots)
		assert.Empty(t, report.Failures)
	})
}

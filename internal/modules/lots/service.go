package lots

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/events"
)

// TransactionSource supplies ordered transaction sequences for lots.
// Satisfied by LotRepository; kept as an interface so the service can be
// tested against canned sequences.
type TransactionSource interface {
	ListLots(stockCode string, minYear int) ([]string, error)
	GetTransactions(stockCode, lot string) ([]TransactionRecord, error)
}

// LotFailure records a single lot whose reconstruction failed during a
// stockcode-wide analysis. Failures never abort the batch.
type LotFailure struct {
	Lot   string `json:"lot"`
	Error string `json:"error"`
}

// StockcodeReport is the result of analyzing every lot of a stockcode.
type StockcodeReport struct {
	RunID     string                 `json:"run_id"`
	StockCode string                 `json:"stock_code"`
	Lots      []*LotLifecycleMetrics `json:"lots"`
	Failures  []LotFailure           `json:"failures,omitempty"`
}

// Service derives usage traces and lifecycle metrics from the ledger.
// Each lot's computation is independent; nothing is shared between lots.
type Service struct {
	source TransactionSource
	events *events.Manager
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a new lot analysis service
func NewService(source TransactionSource, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		events: eventManager,
		log:    log.With().Str("service", "lots").Logger(),
		now:    time.Now,
	}
}

// UsageTrace returns the lot's transactions together with the reconstructed
// running-quantity trace.
func (s *Service) UsageTrace(stockCode, lot string) ([]TransactionRecord, UsageTrace, error) {
	txns, err := s.source.GetTransactions(stockCode, lot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transactions for %s/%s: %w", stockCode, lot, err)
	}

	trace, err := ReconstructUsage(txns)
	if err != nil {
		return nil, nil, fmt.Errorf("lot %s/%s: %w", stockCode, lot, err)
	}

	return txns, trace, nil
}

// AnalyzeLot computes the full lifecycle metrics for one lot.
// targetPercent is the threshold for the percent-issued derivation;
// tolerance is the consumed-percent above which the lot counts as complete.
func (s *Service) AnalyzeLot(stockCode, lot string, targetPercent float64, tolerance int) (*LotLifecycleMetrics, error) {
	txns, trace, err := s.UsageTrace(stockCode, lot)
	if err != nil {
		return nil, err
	}

	first, err := DaysToFirstIssue(txns)
	if err != nil {
		return nil, fmt.Errorf("lot %s/%s: %w", stockCode, lot, err)
	}

	percentIssue, err := DaysToPercentIssued(txns, trace, targetPercent)
	if err != nil {
		return nil, fmt.Errorf("lot %s/%s: %w", stockCode, lot, err)
	}

	lifecycle, err := DaysTotal(txns, trace, tolerance, s.now())
	if err != nil {
		return nil, fmt.Errorf("lot %s/%s: %w", stockCode, lot, err)
	}

	summary, err := MaterialTotalRemainPercent(trace)
	if err != nil {
		return nil, fmt.Errorf("lot %s/%s: %w", stockCode, lot, err)
	}

	metrics := &LotLifecycleMetrics{
		StockCode:          stockCode,
		Lot:                lot,
		OriginalQuantity:   summary.OriginalQuantity,
		RemainingQuantity:  summary.RemainingQuantity,
		PercentUsed:        summary.PercentUsed,
		ReceiptDate:        first.ReceiptDate,
		FirstIssueDate:     first.FirstIssueDate,
		DaysToFirstIssue:   first.Days,
		TargetPercent:      targetPercent,
		PercentIssueDate:   percentIssue.ThresholdDate,
		DaysToPercentIssue: percentIssue.Days,
		LastUseDate:        lifecycle.LastUseDate,
		DaysOfUse:          lifecycle.DaysOfUse,
		DaysTotal:          lifecycle.DaysTotal,
	}

	s.events.Emit(events.LotAnalyzed, "lots", map[string]interface{}{
		"stock_code": stockCode,
		"lot":        lot,
	})

	return metrics, nil
}

// AnalyzeStockcode runs the per-lot analysis across every lot of a stockcode.
// A lot that fails its precondition check is recorded in the report and the
// batch keeps going; one corrupt lot must not take down the rest.
func (s *Service) AnalyzeStockcode(stockCode string, minYear int, targetPercent float64, tolerance int) (*StockcodeReport, error) {
	lotIDs, err := s.source.ListLots(stockCode, minYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots for %s: %w", stockCode, err)
	}

	report := &StockcodeReport{
		RunID:     uuid.NewString(),
		StockCode: stockCode,
	}

	for _, lot := range lotIDs {
		metrics, err := s.AnalyzeLot(stockCode, lot, targetPercent, tolerance)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				s.log.Warn().
					Str("stock_code", stockCode).
					Str("lot", lot).
					Err(err).
					Msg("Skipping lot with invalid transaction data")
				report.Failures = append(report.Failures, LotFailure{Lot: lot, Error: err.Error()})
				s.events.Emit(events.LotAnalysisFailed, "lots", map[string]interface{}{
					"stock_code": stockCode,
					"lot":        lot,
					"error":      err.Error(),
				})
				continue
			}
			return nil, err
		}
		report.Lots = append(report.Lots, metrics)
	}

	s.log.Info().
		Str("run_id", report.RunID).
		Str("stock_code", stockCode).
		Int("lots", len(report.Lots)).
		Int("failures", len(report.Failures)).
		Msg("Stockcode analysis complete")

	return report, nil
}

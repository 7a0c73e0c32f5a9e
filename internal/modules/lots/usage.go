package lots

import (
	"fmt"
)

// usageAccumulator carries the per-lot scan state through the reconstruction.
// signConvention is calibrated once, from the sign of the first issuance:
// issuances used to be recorded as negative deltas, then a procedure change
// made them positive. The first issuance tells us which convention the lot's
// ledger follows, and every later issuance-kind record uses that multiplier.
type usageAccumulator struct {
	signConvention    int
	firstIssuanceSeen bool
}

// apply returns the running quantity after one transaction, updating the
// accumulator state as a side effect. Quantities are truncated to whole
// units before accumulation, matching the ledger's unit granularity.
func (a *usageAccumulator) apply(prev int, rec TransactionRecord) int {
	qty := int(rec.Quantity)

	switch {
	case !a.firstIssuanceSeen && rec.Type == TrnIssuance:
		if qty > 0 {
			a.signConvention = -1
		} else {
			a.signConvention = 1
		}
		a.firstIssuanceSeen = true
		return prev + a.signConvention*qty

	case rec.Type == TrnAdjustment || rec.Type == TrnReceipt:
		// Adjustments and receipts are applied as-is, whatever their sign
		return prev + qty

	default:
		// Subsequent issuances, and anything else, follow the calibrated convention
		return prev + a.signConvention*qty
	}
}

// ReconstructUsage converts an ordered transaction sequence into the lot's
// running-quantity trace. The first record seeds the trace unmodified (it is
// normally the receipt that establishes the on-hand quantity). The result
// has exactly one entry per transaction; no record is skipped or reordered.
//
// The sequence must be non-empty and ordered by date ascending, otherwise
// ErrInvalidInput is returned. Negative running quantities are preserved;
// they represent over-issuance, not corruption.
func ReconstructUsage(txns []TransactionRecord) (UsageTrace, error) {
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w: empty transaction sequence", ErrInvalidInput)
	}

	for i, rec := range txns {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if i > 0 && rec.Date.Before(txns[i-1].Date) {
			return nil, fmt.Errorf("%w: transactions out of date order at index %d", ErrInvalidInput, i)
		}
	}

	trace := make(UsageTrace, len(txns))
	trace[0] = int(txns[0].Quantity)

	acc := usageAccumulator{signConvention: 1}
	for i := 1; i < len(txns); i++ {
		trace[i] = acc.apply(trace[i-1], txns[i])
	}

	return trace, nil
}

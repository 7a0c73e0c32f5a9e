package lots

import (
	"fmt"
	"math"
	"time"
)

// daysBetween returns whole calendar days from a to b, by plain date
// subtraction. No business-day awareness; a lot received Friday and first
// issued Monday is 3 days out.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// DaysToFirstIssue scans the transactions in order and reports the date of
// the first issuance and the elapsed days since the first record. A lot with
// no issuance at all returns absent date and days — an untouched lot is an
// expected outcome, not a failure.
func DaysToFirstIssue(txns []TransactionRecord) (FirstIssue, error) {
	if len(txns) == 0 {
		return FirstIssue{}, fmt.Errorf("%w: empty transaction sequence", ErrInvalidInput)
	}

	receipt := txns[0].Date
	for _, rec := range txns {
		if rec.Type != TrnIssuance {
			continue
		}
		issueDate := rec.Date
		days := daysBetween(receipt, issueDate)
		return FirstIssue{
			ReceiptDate:    receipt,
			FirstIssueDate: &issueDate,
			Days:           &days,
		}, nil
	}

	return FirstIssue{ReceiptDate: receipt}, nil
}

// DaysToPercentIssued finds the first point at which at least percent% of the
// lot's original quantity has been removed, and reports that date together
// with the day count from the first issue (not from receipt). percent must be
// in (0, 100]. A never-issued lot returns all fields absent; a lot that never
// reaches the threshold returns the first-issue date with absent threshold
// date and days.
func DaysToPercentIssued(txns []TransactionRecord, trace UsageTrace, percent float64) (PercentIssue, error) {
	if percent <= 0 || percent > 100 {
		return PercentIssue{}, fmt.Errorf("%w: percent %.2f outside (0, 100]", ErrInvalidInput, percent)
	}
	if len(txns) == 0 || len(trace) != len(txns) {
		return PercentIssue{}, fmt.Errorf("%w: transactions and usage trace misaligned", ErrInvalidInput)
	}

	first, err := DaysToFirstIssue(txns)
	if err != nil {
		return PercentIssue{}, err
	}
	if first.FirstIssueDate == nil {
		return PercentIssue{}, nil
	}

	// remaining <= original * (1 - percent/100) means at least percent% gone.
	// Strictly above the threshold keeps scanning.
	threshold := float64(trace[0]) * (1 - percent/100)
	for i, remaining := range trace {
		if float64(remaining) > threshold {
			continue
		}
		hitDate := txns[i].Date
		days := daysBetween(txns[0].Date, hitDate) - *first.Days
		return PercentIssue{
			FirstIssueDate: first.FirstIssueDate,
			ThresholdDate:  &hitDate,
			Days:           &days,
		}, nil
	}

	return PercentIssue{FirstIssueDate: first.FirstIssueDate}, nil
}

// DaysTotal reports the lot's receipt date, last transaction date, the span
// between them, and a total lifecycle span. When the lot is consumed at or
// above the tolerance percent the lifecycle equals the days of use; otherwise
// the lot is still active and the lifecycle runs from receipt to now.
// tolerance is a percent in [0, 100]; 100 requires full consumption.
func DaysTotal(txns []TransactionRecord, trace UsageTrace, tolerance int, now time.Time) (Lifecycle, error) {
	if len(txns) == 0 || len(trace) != len(txns) {
		return Lifecycle{}, fmt.Errorf("%w: transactions and usage trace misaligned", ErrInvalidInput)
	}

	receipt := txns[0].Date
	lastUse := txns[len(txns)-1].Date
	daysUse := daysBetween(receipt, lastUse)

	summary, err := MaterialTotalRemainPercent(trace)
	if err != nil {
		return Lifecycle{}, err
	}

	// A zero-quantity lot has no percent at all and is treated as still open.
	daysTotal := daysBetween(receipt, now)
	if summary.PercentUsed != nil && *summary.PercentUsed >= tolerance {
		daysTotal = daysUse
	}

	return Lifecycle{
		ReceiptDate: receipt,
		LastUseDate: lastUse,
		DaysOfUse:   daysUse,
		DaysTotal:   daysTotal,
	}, nil
}

// MaterialTotalRemainPercent reports the lot's original quantity (first trace
// value), remaining quantity (last trace value) and percent used, ceiling
// rounded. A zero original quantity returns all fields absent rather than
// dividing by zero.
func MaterialTotalRemainPercent(trace UsageTrace) (QuantitySummary, error) {
	if len(trace) == 0 {
		return QuantitySummary{}, fmt.Errorf("%w: empty usage trace", ErrInvalidInput)
	}

	original := trace[0]
	remaining := trace[len(trace)-1]

	if original == 0 {
		return QuantitySummary{}, nil
	}

	percent := int(math.Ceil(float64(original-remaining) / float64(original) * 100))
	return QuantitySummary{
		OriginalQuantity:  &original,
		RemainingQuantity: &remaining,
		PercentUsed:       &percent,
	}, nil
}

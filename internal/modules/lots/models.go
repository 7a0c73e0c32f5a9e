package lots

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks a precondition violation: an empty or unordered
// transaction sequence, or a record kind the core does not recognize.
// It is fatal to a single lot's computation only; batch callers are expected
// to record it per lot and continue.
var ErrInvalidInput = errors.New("invalid transaction input")

// TrnType represents the ledger transaction kind.
// The ERP encodes kinds as single-letter codes; only R, I and A are
// meaningful to the tracker, everything else maps to TrnOther.
type TrnType string

const (
	TrnReceipt    TrnType = "R"
	TrnIssuance   TrnType = "I"
	TrnAdjustment TrnType = "A"
	TrnOther      TrnType = "O"
)

// IsValid checks if the transaction type is one the core understands
func (t TrnType) IsValid() bool {
	switch t {
	case TrnReceipt, TrnIssuance, TrnAdjustment, TrnOther:
		return true
	}
	return false
}

// TrnTypeFromCode maps a raw ledger type code to a TrnType
func TrnTypeFromCode(code string) TrnType {
	switch code {
	case "R":
		return TrnReceipt
	case "I":
		return TrnIssuance
	case "A":
		return TrnAdjustment
	default:
		return TrnOther
	}
}

// TransactionRecord is one ledger entry for a (stockcode, lot) pair.
// Sequences handed to the reconstruction are ordered by Date ascending;
// same-date records keep their source order.
type TransactionRecord struct {
	Type     TrnType   `json:"type"`
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// Validate checks the record for use by the core
func (t TransactionRecord) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: unrecognized transaction type %q", ErrInvalidInput, string(t.Type))
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: transaction has no date", ErrInvalidInput)
	}
	return nil
}

// UsageTrace holds the running on-hand quantity immediately after each
// transaction. It is always the same length as the transaction sequence it
// was derived from. Quantities are whole units; negative values are valid
// (over-issuance) and preserved.
type UsageTrace []int

// FirstIssue is the result of the receipt-to-first-issue derivation.
// FirstIssueDate and Days are nil for a lot that has never been issued;
// that is a normal outcome, not an error.
type FirstIssue struct {
	ReceiptDate    time.Time  `json:"receipt_date"`
	FirstIssueDate *time.Time `json:"first_issue_date,omitempty"`
	Days           *int       `json:"days,omitempty"`
}

// PercentIssue is the result of the percent-issued derivation. All fields
// are nil for a never-issued lot; ThresholdDate and Days are nil when the
// lot never reaches the target percent in the available data.
type PercentIssue struct {
	FirstIssueDate *time.Time `json:"first_issue_date,omitempty"`
	ThresholdDate  *time.Time `json:"threshold_date,omitempty"`
	Days           *int       `json:"days,omitempty"`
}

// Lifecycle is the result of the receipt-to-last-use derivation.
// DaysTotal equals DaysOfUse when the lot is consumed at or above the
// tolerance percent, otherwise it is the open-ended span from receipt to now.
type Lifecycle struct {
	ReceiptDate time.Time `json:"receipt_date"`
	LastUseDate time.Time `json:"last_use_date"`
	DaysOfUse   int       `json:"days_of_use"`
	DaysTotal   int       `json:"days_total"`
}

// QuantitySummary reports original and remaining quantity for a lot.
// All fields are nil for a zero-quantity receipt, which carries no
// meaningful usage percentage.
type QuantitySummary struct {
	OriginalQuantity  *int `json:"original_quantity,omitempty"`
	RemainingQuantity *int `json:"remaining_quantity,omitempty"`
	PercentUsed       *int `json:"percent_used,omitempty"`
}

// LotLifecycleMetrics is the combined per-lot summary emitted to reporting.
type LotLifecycleMetrics struct {
	StockCode string `json:"stock_code"`
	Lot       string `json:"lot"`

	OriginalQuantity  *int `json:"original_quantity,omitempty"`
	RemainingQuantity *int `json:"remaining_quantity,omitempty"`
	PercentUsed       *int `json:"percent_used,omitempty"`

	ReceiptDate      time.Time  `json:"receipt_date"`
	FirstIssueDate   *time.Time `json:"first_issue_date,omitempty"`
	DaysToFirstIssue *int       `json:"days_to_first_issue,omitempty"`

	TargetPercent      float64    `json:"target_percent"`
	PercentIssueDate   *time.Time `json:"percent_issue_date,omitempty"`
	DaysToPercentIssue *int       `json:"days_to_percent_issue,omitempty"`

	LastUseDate time.Time `json:"last_use_date"`
	DaysOfUse   int       `json:"days_of_use"`
	DaysTotal   int       `json:"days_total"`
}

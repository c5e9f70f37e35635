package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusExpired           PaymentStatus = "expired"
)

// Currency is an ISO 4217 currency code. The set of accepted currencies is
// gateway configuration, not a fixed enum.
type Currency string

// moneyEpsilon is the tolerance used when comparing money amounts; all
// amounts are rounded to two decimals, so half a cent is enough slack.
const moneyEpsilon = 0.005

// Paymentable is a tagged reference to the external entity a payment is for
// (admission, tuition, exam fee, ...). The core never dereferences it.
type Paymentable struct {
	Kind string
	ID   string
}

// DetailSnapshot is one append-only entry in a payment's details blob,
// capturing a gateway request or response verbatim.
type DetailSnapshot struct {
	Kind string          `json:"kind"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Payment is the central ledger entry.
type Payment struct {
	ID            uuid.UUID
	InvoiceNumber string
	Paymentable   Paymentable

	Amount         float64
	DiscountAmount float64
	FineAmount     float64
	TaxAmount      float64
	FeeAmount      float64
	TotalAmount    float64
	PaidAmount     float64
	DueAmount      float64

	Currency        Currency
	Method          string // gateway code
	Status          PaymentStatus
	PaymentDate     *time.Time
	ReferenceNumber string
	TransactionID   string // gateway-assigned, empty until confirmed
	Description     string
	Details         []DetailSnapshot

	SuccessURL string
	CancelURL  string

	NeedsReview  bool
	ReviewReason string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OutcomeState is a gateway's normalized report of where a transaction ended up.
type OutcomeState string

const (
	OutcomeSucceeded OutcomeState = "succeeded"
	OutcomeFailed    OutcomeState = "failed"
	OutcomePending   OutcomeState = "pending"
)

// Outcome is a normalized gateway report (from a webhook, a redirect callback
// or an explicit verify call) about a single payment.
type Outcome struct {
	State         OutcomeState
	TransactionID string
	Amount        float64
	Reason        string
}

// IsTerminal reports whether no further gateway reconciliation is expected.
// A failed payment is deliberately not terminal: providers may still confirm
// success out-of-band after we recorded a failure.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusRefunded, PaymentStatusPartiallyRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// IsPending checks if payment is in pending status
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// AppendDetail appends a gateway request/response snapshot. Snapshots are
// append-only history and never rewritten.
func (p *Payment) AppendDetail(kind string, data json.RawMessage, at time.Time) {
	p.Details = append(p.Details, DetailSnapshot{Kind: kind, At: at, Data: data})
}

// ApplyOutcome advances the payment according to a gateway outcome. It is the
// single idempotent transition primitive shared by webhooks, redirect
// callbacks and verify calls, and must run under the payment's row lock.
//
// Returns changed=false when the outcome is a redundant delivery of a state
// the payment already reached. A report that contradicts an existing terminal
// state is never applied; it surfaces as a ReconciliationConflictError.
func (p *Payment) ApplyOutcome(out Outcome, now time.Time) (bool, error) {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		if out.State == OutcomeSucceeded || out.State == OutcomePending {
			return false, nil // duplicate delivery of a success we already hold
		}
		return false, &ReconciliationConflictError{
			PaymentID: p.ID, Current: p.Status, Reported: out.State,
		}
	case PaymentStatusCancelled, PaymentStatusExpired:
		if out.State == OutcomeFailed || out.State == OutcomePending {
			return false, nil
		}
		return false, &ReconciliationConflictError{
			PaymentID: p.ID, Current: p.Status, Reported: out.State,
		}
	}

	switch out.State {
	case OutcomeSucceeded:
		p.PaidAmount = p.TotalAmount
		p.DueAmount = 0
		p.Status = PaymentStatusCompleted
		t := now
		p.PaymentDate = &t
		if out.TransactionID != "" {
			p.TransactionID = out.TransactionID
		}
		return true, nil
	case OutcomeFailed:
		if p.Status == PaymentStatusFailed {
			return false, nil
		}
		p.Status = PaymentStatusFailed
		if out.TransactionID != "" && p.TransactionID == "" {
			p.TransactionID = out.TransactionID
		}
		return true, nil
	case OutcomePending:
		return false, nil
	}
	return false, fmt.Errorf("unknown outcome state %q", out.State)
}

// MarkExpired is only valid out of non-terminal states; the external sweeper
// that decides when to call it is not part of this core.
func (p *Payment) MarkExpired() error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed:
		p.Status = PaymentStatusExpired
		return nil
	}
	return &ReconciliationConflictError{PaymentID: p.ID, Current: p.Status, Reported: "expired"}
}

// ApplyRefund settles a completed refund against this payment. Must run in
// the same critical section that completed the refund.
func (p *Payment) ApplyRefund(amount float64) {
	p.PaidAmount = Round2(p.PaidAmount - amount)
	p.DueAmount = Round2(p.TotalAmount - p.PaidAmount)
	if p.PaidAmount <= moneyEpsilon {
		p.PaidAmount = 0
		p.DueAmount = Round2(p.TotalAmount)
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
}

// RefundableRemaining is the portion of paid_amount not yet consumed by
// refunds. Completed refunds are already subtracted from PaidAmount at
// settlement, so the caller passes only the in-flight (pending/processing)
// total as the reservation.
func (p *Payment) RefundableRemaining(reservedTotal float64) float64 {
	return Round2(p.PaidAmount - reservedTotal)
}

// CheckLedger verifies the algebraic relationship among the money fields.
// A non-nil return indicates a logic defect, not a business error.
func (p *Payment) CheckLedger() error {
	expectedTotal := p.Amount - p.DiscountAmount + p.FineAmount + p.TaxAmount + p.FeeAmount
	if math.Abs(p.TotalAmount-expectedTotal) > moneyEpsilon {
		return &InvariantViolation{
			PaymentID: p.ID,
			Detail:    fmt.Sprintf("total_amount %.2f != %.2f (amount-discount+fine+tax+fee)", p.TotalAmount, expectedTotal),
		}
	}
	if math.Abs(p.PaidAmount+p.DueAmount-p.TotalAmount) > moneyEpsilon {
		return &InvariantViolation{
			PaymentID: p.ID,
			Detail:    fmt.Sprintf("paid %.2f + due %.2f != total %.2f", p.PaidAmount, p.DueAmount, p.TotalAmount),
		}
	}
	if p.PaidAmount < -moneyEpsilon || p.DueAmount < -moneyEpsilon {
		return &InvariantViolation{
			PaymentID: p.ID,
			Detail:    fmt.Sprintf("negative money field: paid %.2f due %.2f", p.PaidAmount, p.DueAmount),
		}
	}
	return nil
}

// HoldForReview flags the payment for operator attention without touching the
// public status enum.
func (p *Payment) HoldForReview(reason string) {
	p.NeedsReview = true
	p.ReviewReason = reason
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

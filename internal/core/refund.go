package core

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
	RefundStatusCancelled  RefundStatus = "cancelled"
)

// Refund is a money-out operation against exactly one payment. A completed
// refund is immutable history; corrections require a new refund.
type Refund struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Amount    float64
	Currency  Currency
	Reason    string
	Status    RefundStatus

	// Manual refunds (cash/cheque payments) are bookkeeping entries that
	// require no gateway call.
	Manual bool

	TransactionID string // gateway refund reference
	FailureReason string

	ProcessedBy string
	ProcessedAt *time.Time
	Metadata    map[string]string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartProcessing transitions pending -> processing.
func (r *Refund) StartProcessing(actor string) error {
	if r.Status != RefundStatusPending {
		return NewValidationError("status", "refund is %s, only pending refunds can be processed", r.Status)
	}
	r.Status = RefundStatusProcessing
	r.ProcessedBy = actor
	return nil
}

// Complete transitions processing -> completed, recording the gateway
// reference.
func (r *Refund) Complete(transactionID string, now time.Time) error {
	if r.Status != RefundStatusProcessing {
		return NewValidationError("status", "refund is %s, only processing refunds can complete", r.Status)
	}
	r.Status = RefundStatusCompleted
	r.TransactionID = transactionID
	t := now
	r.ProcessedAt = &t
	return nil
}

// Fail transitions processing -> failed, recording the error.
func (r *Refund) Fail(reason string, now time.Time) error {
	if r.Status != RefundStatusProcessing {
		return NewValidationError("status", "refund is %s, only processing refunds can fail", r.Status)
	}
	r.Status = RefundStatusFailed
	r.FailureReason = reason
	t := now
	r.ProcessedAt = &t
	return nil
}

// Cancel is permitted only while pending and has no ledger effect.
func (r *Refund) Cancel(reason string) error {
	if r.Status != RefundStatusPending {
		return NewValidationError("status", "refund is %s, only pending refunds can be cancelled", r.Status)
	}
	r.Status = RefundStatusCancelled
	r.FailureReason = reason
	return nil
}

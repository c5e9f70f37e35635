package input

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolpay/payment-gateway/internal/core"
)

// RefundService is the input port for the refund lifecycle.
type RefundService interface {
	// InitiateRefund validates the amount against the payment's refundable
	// remainder and creates a pending refund. The check and the insert share
	// one critical section keyed by payment id.
	InitiateRefund(ctx context.Context, req RefundRequest) (*core.Refund, error)

	// ProcessRefund drives a pending refund through processing to
	// completed/failed, settling the owning payment's ledger on completion.
	ProcessRefund(ctx context.Context, refundID uuid.UUID, actor string) (*core.Refund, error)

	// CancelRefund cancels a still-pending refund. No ledger effect.
	CancelRefund(ctx context.Context, refundID uuid.UUID, reason, actor string) (*core.Refund, error)

	GetRefund(ctx context.Context, refundID uuid.UUID) (*core.Refund, error)
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*core.Refund, error)
}

// RefundRequest asks for a (partial) refund of one payment.
type RefundRequest struct {
	PaymentID uuid.UUID
	Amount    float64
	Reason    string
	Metadata  map[string]string
	Actor     string
}

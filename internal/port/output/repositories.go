package output

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolpay/payment-gateway/internal/core"
)

// PaymentRepository is the output port for payment persistence. Mutations go
// through UpdateLocked, which holds the payment's row lock for the duration
// of the callback so check-then-act sequences are serialized per payment.
type PaymentRepository interface {
	// Create persists a new payment and assigns its invoice number from the
	// per-day counter in the same transaction.
	Create(ctx context.Context, payment *core.Payment) error

	GetByID(ctx context.Context, id uuid.UUID) (*core.Payment, error)
	GetByInvoiceNumber(ctx context.Context, invoice string) (*core.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*core.Payment, error)

	// UpdateLocked loads the payment under SELECT FOR UPDATE, runs fn, and
	// persists the result. fn returning an error rolls everything back.
	UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.Payment) error) (*core.Payment, error)
}

// RefundRepository is the output port for refund persistence. Creation and
// settlement both run inside the owning payment's row lock, so two
// concurrent refunds against one payment serialize their refundable check.
type RefundRepository interface {
	// CreateForPayment locks the payment, sums its in-flight refunds
	// (pending and processing; completed refunds are already reflected in
	// the payment's paid_amount), calls build to validate and construct the
	// refund, and inserts it. In-flight amounts count against the remainder
	// so concurrent requests cannot jointly over-refund. Nothing is
	// persisted when build returns an error.
	CreateForPayment(ctx context.Context, paymentID uuid.UUID, build func(p *core.Payment, reservedTotal float64) (*core.Refund, error)) (*core.Refund, error)

	GetByID(ctx context.Context, id uuid.UUID) (*core.Refund, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*core.Refund, error)

	// UpdateLocked mutates a refund under its row lock.
	UpdateLocked(ctx context.Context, id uuid.UUID, fn func(r *core.Refund) error) (*core.Refund, error)

	// Settle locks the owning payment and then the refund, runs fn with
	// both, and persists both in one transaction.
	Settle(ctx context.Context, refundID uuid.UUID, fn func(r *core.Refund, p *core.Payment) error) (*core.Refund, *core.Payment, error)
}

// ProfileRepository is the output port for recurring payment profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *core.RecurringPaymentProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.RecurringPaymentProfile, error)

	// ListDue returns active profiles whose next_billing_date has passed and
	// whose end_date has not.
	ListDue(ctx context.Context, now time.Time) ([]*core.RecurringPaymentProfile, error)

	UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.RecurringPaymentProfile) error) (*core.RecurringPaymentProfile, error)
}

// GatewayConfigRepository reads static gateway configuration.
type GatewayConfigRepository interface {
	GetByCode(ctx context.Context, code string) (*core.PaymentGatewayConfig, error)
	ListActive(ctx context.Context) ([]*core.PaymentGatewayConfig, error)
}

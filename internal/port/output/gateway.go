package output

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/schoolpay/payment-gateway/internal/core"
)

// InitializeOptions carries per-transaction options into a gateway adapter.
type InitializeOptions struct {
	SuccessURL string
	CancelURL  string

	// MethodToken is a stored payment-method token; when set the adapter
	// should charge it directly instead of producing a checkout redirect.
	MethodToken string

	Metadata map[string]string
}

// InitializeResult is an adapter's response to transaction initiation. The
// raw payload is stored verbatim on the payment and is never required for
// later state transitions — those come only from callbacks and verification.
type InitializeResult struct {
	GatewayRef   string
	RedirectURL  string
	ClientSecret string
	Raw          json.RawMessage

	// Outcome is non-nil when the adapter settled synchronously (offline
	// methods, token charges).
	Outcome *core.Outcome
}

// Notification is a gateway callback or webhook payload normalized by the
// owning adapter. Either TransactionID or PaymentID must identify the target.
type Notification struct {
	TransactionID string
	PaymentID     uuid.UUID
	Outcome       core.Outcome
	Raw           json.RawMessage
}

// GatewayAdapter is the uniform interface to one external payment provider.
// All methods that reach the provider block on network I/O; callers bound
// them with a context deadline.
type GatewayAdapter interface {
	// Code returns the gateway code this adapter serves.
	Code() string

	// Initialize starts a transaction for a pending payment.
	Initialize(ctx context.Context, payment *core.Payment, opts InitializeOptions) (*InitializeResult, error)

	// Verify asks the provider for the current outcome of a payment.
	Verify(ctx context.Context, payment *core.Payment) (*core.Outcome, error)

	// Refund pushes a (partial) refund to the provider and returns the
	// provider's refund reference.
	Refund(ctx context.Context, payment *core.Payment, amount float64) (string, error)

	// ParseNotification normalizes a provider-specific callback/webhook
	// payload. params carries query/form parameters from redirect callbacks.
	ParseNotification(body []byte, params map[string]string) (*Notification, error)
}

// GatewayRegistry resolves adapters by gateway code.
type GatewayRegistry interface {
	Adapter(code string) (GatewayAdapter, error)
}

package input

import (
	"context"

	"github.com/schoolpay/payment-gateway/internal/core"
)

// CallbackService reconciles gateway callbacks and webhooks. Both delivery
// channels share this single entry point because providers may deliver
// either or both for the same transaction.
type CallbackService interface {
	// Reconcile parses a provider payload through the gateway's adapter and
	// idempotently advances the target payment. Redundant deliveries are
	// reported as a successful no-op so providers stop retrying.
	Reconcile(ctx context.Context, gatewayCode string, body []byte, params map[string]string) (*ReconcileResult, error)
}

// ReconcileResult tells the transport layer what happened and where to send
// the end user, without embedding presentation logic in the core.
type ReconcileResult struct {
	Payment *core.Payment

	// Applied is false for idempotent no-ops (duplicate deliveries).
	Applied bool

	// SuccessURL and CancelURL were captured at initiation; empty when the
	// initiating client supplied none.
	SuccessURL string
	CancelURL  string
}

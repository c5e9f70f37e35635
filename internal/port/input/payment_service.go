package input

import (
	"context"

	"github.com/schoolpay/payment-gateway/internal/core"
)

// PaymentService is an input port (primary port) for payment operations.
// Primary adapters (HTTP handlers) will use this.
type PaymentService interface {
	// Initiate validates the request against gateway configuration, creates
	// a pending payment with a generated invoice number and starts the
	// gateway transaction. On gateway unavailability or timeout the result
	// still carries the pending payment alongside the error.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// RecordOfflinePayment records a cash/cheque payment directly as
	// completed, with no gateway round-trip.
	RecordOfflinePayment(ctx context.Context, req OfflinePaymentRequest) (*core.Payment, error)

	// GetStatus resolves a payment by id or invoice number. Non-terminal
	// payments get a best-effort re-verification first.
	GetStatus(ctx context.Context, ref string) (*core.Payment, error)

	// ListGateways returns active, configured gateways with their fee
	// schedules and constraints.
	ListGateways(ctx context.Context) ([]*core.PaymentGatewayConfig, error)
}

// InitiateResult returns the created payment together with whatever the
// gateway handed back for the client (redirect URL, client secret). Neither
// is ever required for later state transitions.
type InitiateResult struct {
	Payment      *core.Payment
	RedirectURL  string
	ClientSecret string
}

// InitiateRequest carries everything needed to start a payment. Actor is the
// authenticated principal, threaded explicitly by the caller.
type InitiateRequest struct {
	Paymentable    core.Paymentable
	Amount         float64
	DiscountAmount float64
	FineAmount     float64
	TaxAmount      float64
	Currency       core.Currency
	GatewayCode    string
	Description    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	Actor          string
}

// OfflinePaymentRequest records a payment taken outside any online gateway.
type OfflinePaymentRequest struct {
	Paymentable     core.Paymentable
	Amount          float64
	DiscountAmount  float64
	FineAmount      float64
	TaxAmount       float64
	Currency        core.Currency
	GatewayCode     string // offline gateway code, e.g. "cash", "cheque"
	ReferenceNumber string
	Description     string
	Actor           string
}

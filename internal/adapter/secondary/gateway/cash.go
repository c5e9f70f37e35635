package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// CashAdapter serves offline methods (cash, cheque). There is no provider to
// call: initiation leaves the payment awaiting manual confirmation, and the
// school office confirms receipt by posting to the gateway's webhook
// endpoint. Refunds against cash payments are manual bookkeeping and never
// reach this adapter.
type CashAdapter struct {
	code string
}

// NewCashAdapter creates an adapter for one offline gateway code.
func NewCashAdapter(code string) *CashAdapter {
	return &CashAdapter{code: code}
}

var _ output.GatewayAdapter = (*CashAdapter)(nil)

// Code returns the gateway code this adapter serves.
func (a *CashAdapter) Code() string { return a.code }

// Initialize issues an internal reference; settlement happens when the
// office confirms receipt.
func (a *CashAdapter) Initialize(ctx context.Context, payment *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
	ref := a.code + "_" + uuid.NewString()
	raw, _ := json.Marshal(map[string]string{
		"reference": ref,
		"note":      "awaiting manual confirmation",
	})
	return &output.InitializeResult{GatewayRef: ref, Raw: raw}, nil
}

// Verify has no provider to ask; the stored state stands.
func (a *CashAdapter) Verify(ctx context.Context, payment *core.Payment) (*core.Outcome, error) {
	return &core.Outcome{State: core.OutcomePending, TransactionID: payment.TransactionID}, nil
}

// Refund is never called for offline methods.
func (a *CashAdapter) Refund(ctx context.Context, payment *core.Payment, amount float64) (string, error) {
	return "", fmt.Errorf("gateway %s settles refunds manually", a.code)
}

type cashNotification struct {
	PaymentID     string  `json:"payment_id"`
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
}

// ParseNotification accepts the office confirmation payload:
// {"payment_id": "...", "status": "received"|"void", "amount": 100}.
func (a *CashAdapter) ParseNotification(body []byte, params map[string]string) (*output.Notification, error) {
	var n cashNotification
	if len(body) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("invalid confirmation payload: %w", err)
		}
	}
	if n.PaymentID == "" {
		n.PaymentID = params["payment_id"]
	}
	if n.Status == "" {
		n.Status = params["status"]
	}

	note := &output.Notification{TransactionID: n.TransactionID, Raw: body}
	if n.PaymentID != "" {
		id, err := uuid.Parse(n.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("invalid payment_id %q: %w", n.PaymentID, err)
		}
		note.PaymentID = id
	}
	switch n.Status {
	case "received":
		note.Outcome = core.Outcome{State: core.OutcomeSucceeded, TransactionID: n.TransactionID, Amount: n.Amount}
	case "void":
		note.Outcome = core.Outcome{State: core.OutcomeFailed, TransactionID: n.TransactionID, Reason: "voided by office"}
	default:
		return nil, fmt.Errorf("unknown confirmation status %q", n.Status)
	}
	return note, nil
}

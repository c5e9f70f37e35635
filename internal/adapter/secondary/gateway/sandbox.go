package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// SandboxCode is the gateway code of the built-in simulated provider.
const SandboxCode = "sandbox"

// SandboxAdapter simulates a hosted-checkout provider for development and
// integration testing. Checkout initiations return a redirect URL; stored
// tokens charge synchronously (tokens prefixed "tok_fail" decline). The
// adapter remembers its own transactions so Verify answers like a real
// provider would.
type SandboxAdapter struct {
	checkoutBase string

	mu    sync.Mutex
	state map[string]core.OutcomeState // by transaction id
}

// NewSandboxAdapter creates a sandbox adapter. checkoutBase is the base URL
// used to build redirect URLs.
func NewSandboxAdapter(checkoutBase string) *SandboxAdapter {
	return &SandboxAdapter{
		checkoutBase: strings.TrimRight(checkoutBase, "/"),
		state:        make(map[string]core.OutcomeState),
	}
}

var _ output.GatewayAdapter = (*SandboxAdapter)(nil)

// Code returns the gateway code this adapter serves.
func (a *SandboxAdapter) Code() string { return SandboxCode }

// Initialize starts a sandbox transaction. With a stored token the charge
// settles synchronously; otherwise the payer is sent to a checkout URL and
// the outcome arrives later via webhook or verify.
func (a *SandboxAdapter) Initialize(ctx context.Context, payment *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := "sbx_" + uuid.NewString()

	if opts.MethodToken != "" {
		state := core.OutcomeSucceeded
		reason := ""
		if strings.HasPrefix(opts.MethodToken, "tok_fail") {
			state = core.OutcomeFailed
			reason = "card declined"
		}
		a.setState(txn, state)
		raw, _ := json.Marshal(map[string]string{
			"transaction_id": txn,
			"charge":         "synchronous",
			"result":         string(state),
		})
		return &output.InitializeResult{
			GatewayRef: txn,
			Raw:        raw,
			Outcome:    &core.Outcome{State: state, TransactionID: txn, Amount: payment.TotalAmount, Reason: reason},
		}, nil
	}

	a.setState(txn, core.OutcomePending)
	redirect := fmt.Sprintf("%s/checkout/%s", a.checkoutBase, txn)
	raw, _ := json.Marshal(map[string]string{
		"transaction_id": txn,
		"redirect_url":   redirect,
	})
	return &output.InitializeResult{GatewayRef: txn, RedirectURL: redirect, Raw: raw}, nil
}

// Verify reports the adapter's own record of the transaction.
func (a *SandboxAdapter) Verify(ctx context.Context, payment *core.Payment) (*core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if payment.TransactionID == "" {
		return &core.Outcome{State: core.OutcomePending}, nil
	}
	a.mu.Lock()
	state, ok := a.state[payment.TransactionID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", payment.TransactionID)
	}
	return &core.Outcome{State: state, TransactionID: payment.TransactionID, Amount: payment.TotalAmount}, nil
}

// Refund always succeeds in the sandbox and returns a refund reference.
func (a *SandboxAdapter) Refund(ctx context.Context, payment *core.Payment, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 || amount > payment.PaidAmount {
		return "", fmt.Errorf("sandbox rejects refund of %.2f against paid %.2f", amount, payment.PaidAmount)
	}
	return "sbxr_" + uuid.NewString(), nil
}

type sandboxNotification struct {
	TransactionID string  `json:"transaction_id"`
	PaymentID     string  `json:"payment_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

// ParseNotification accepts the sandbox webhook body or the redirect
// callback query parameters:
// {"transaction_id": "sbx_...", "status": "succeeded"|"failed", "amount": 100}.
func (a *SandboxAdapter) ParseNotification(body []byte, params map[string]string) (*output.Notification, error) {
	var n sandboxNotification
	if len(body) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("invalid sandbox payload: %w", err)
		}
	}
	if n.TransactionID == "" {
		n.TransactionID = params["transaction_id"]
	}
	if n.PaymentID == "" {
		n.PaymentID = params["payment_id"]
	}
	if n.Status == "" {
		n.Status = params["status"]
	}
	if n.TransactionID == "" && n.PaymentID == "" {
		return nil, fmt.Errorf("notification carries no transaction_id or payment_id")
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
	case "succeeded", "success", "completed":
		note.Outcome = core.Outcome{State: core.OutcomeSucceeded, TransactionID: n.TransactionID, Amount: n.Amount}
		a.setState(n.TransactionID, core.OutcomeSucceeded)
	case "failed", "cancelled", "declined":
		note.Outcome = core.Outcome{State: core.OutcomeFailed, TransactionID: n.TransactionID, Reason: n.Reason}
		a.setState(n.TransactionID, core.OutcomeFailed)
	default:
		return nil, fmt.Errorf("unknown sandbox status %q", n.Status)
	}
	return note, nil
}

func (a *SandboxAdapter) setState(txn string, state core.OutcomeState) {
	if txn == "" {
		return
	}
	a.mu.Lock()
	a.state[txn] = state
	a.mu.Unlock()
}

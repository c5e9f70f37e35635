package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

func sandboxPayment(total float64) *core.Payment {
	return &core.Payment{
		ID:          uuid.New(),
		TotalAmount: total,
		DueAmount:   total,
		Currency:    "USD",
		Method:      SandboxCode,
		Status:      core.PaymentStatusPending,
	}
}

func TestSandboxCheckoutFlow(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com/")
	p := sandboxPayment(100)

	result, err := a.Initialize(context.Background(), p, output.InitializeOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.GatewayRef)
	assert.Equal(t, fmt.Sprintf("https://sandbox.example.com/checkout/%s", result.GatewayRef), result.RedirectURL)
	assert.Nil(t, result.Outcome, "checkout settles asynchronously")

	// Before the payer finishes, verify reports pending.
	p.TransactionID = result.GatewayRef
	out, err := a.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomePending, out.State)

	// The webhook settles the transaction; verify then agrees with it.
	body := []byte(fmt.Sprintf(`{"transaction_id":%q,"status":"succeeded","amount":100}`, result.GatewayRef))
	note, err := a.ParseNotification(body, nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSucceeded, note.Outcome.State)
	assert.Equal(t, result.GatewayRef, note.TransactionID)

	out, err = a.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSucceeded, out.State)
}

func TestSandboxTokenChargeSettlesSynchronously(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com")

	result, err := a.Initialize(context.Background(), sandboxPayment(500), output.InitializeOptions{MethodToken: "tok_visa"})
	require.NoError(t, err)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, core.OutcomeSucceeded, result.Outcome.State)
	assert.Equal(t, 500.0, result.Outcome.Amount)
	assert.Empty(t, result.RedirectURL)
}

func TestSandboxDecliningToken(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com")

	result, err := a.Initialize(context.Background(), sandboxPayment(500), output.InitializeOptions{MethodToken: "tok_fail_visa"})
	require.NoError(t, err)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, core.OutcomeFailed, result.Outcome.State)
	assert.Equal(t, "card declined", result.Outcome.Reason)
}

func TestSandboxParseNotificationFromParams(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com")
	id := uuid.New()

	note, err := a.ParseNotification(nil, map[string]string{
		"payment_id": id.String(),
		"status":     "cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, id, note.PaymentID)
	assert.Equal(t, core.OutcomeFailed, note.Outcome.State)
}

func TestSandboxParseNotificationRejectsGarbage(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com")

	_, err := a.ParseNotification([]byte(`not json`), nil)
	assert.Error(t, err)

	_, err = a.ParseNotification([]byte(`{"status":"succeeded"}`), nil)
	assert.Error(t, err, "no transaction_id or payment_id")

	_, err = a.ParseNotification([]byte(`{"transaction_id":"sbx_1","status":"sideways"}`), nil)
	assert.Error(t, err, "unknown status")
}

func TestSandboxRefundBounds(t *testing.T) {
	a := NewSandboxAdapter("https://sandbox.example.com")
	p := sandboxPayment(100)
	p.PaidAmount = 100

	ref, err := a.Refund(context.Background(), p, 40)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	_, err = a.Refund(context.Background(), p, 0)
	assert.Error(t, err)
	_, err = a.Refund(context.Background(), p, 100.01)
	assert.Error(t, err)
}

func TestCashAdapterConfirmation(t *testing.T) {
	a := NewCashAdapter("cash")
	assert.Equal(t, "cash", a.Code())

	id := uuid.New()
	note, err := a.ParseNotification([]byte(fmt.Sprintf(`{"payment_id":%q,"status":"received","amount":200}`, id)), nil)
	require.NoError(t, err)
	assert.Equal(t, id, note.PaymentID)
	assert.Equal(t, core.OutcomeSucceeded, note.Outcome.State)

	note, err = a.ParseNotification([]byte(fmt.Sprintf(`{"payment_id":%q,"status":"void"}`, id)), nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeFailed, note.Outcome.State)

	_, err = a.ParseNotification([]byte(`{"status":"lost"}`), nil)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCashAdapter("cash"))

	a, err := r.Adapter("cash")
	require.NoError(t, err)
	assert.Equal(t, "cash", a.Code())

	_, err = r.Adapter("ghost")
	assert.Error(t, err)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// webhookAdapter parses `{"txn":"...","ok":true|false}`-shaped stub payloads
// scripted directly as outcomes.
func webhookAdapter(outcome core.Outcome) *stubAdapter {
	return &stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{GatewayRef: "txn_hook"}, nil
		},
		parseFn: func(body []byte, params map[string]string) (*output.Notification, error) {
			return &output.Notification{TransactionID: outcome.TransactionID, Outcome: outcome, Raw: body}, nil
		},
	}
}

func initiatedPayment(t *testing.T, env *testEnv) *core.Payment {
	t.Helper()
	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())
	require.NoError(t, err)
	return result.Payment
}

func TestReconcileAppliesSuccess(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(webhookAdapter(core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_hook"}))
	payment := initiatedPayment(t, env)

	result, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)

	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, payment.ID, result.Payment.ID)
	assert.Equal(t, core.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, "https://school.example.com/paid", result.SuccessURL)
	assert.Equal(t, []output.EventKind{output.EventPaymentCompleted}, env.publisher.kinds())
}

func TestReconcileDuplicateDeliveryIsNoOp(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(webhookAdapter(core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_hook"}))
	initiatedPayment(t, env)

	first, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)
	require.NoError(t, err, "redundant delivery must be acknowledged, not errored")
	assert.False(t, second.Applied)
	assert.Equal(t, core.PaymentStatusCompleted, second.Payment.Status)
	assert.Equal(t, []output.EventKind{output.EventPaymentCompleted}, env.publisher.kinds(),
		"the duplicate publishes no second event")
}

func TestReconcileConflictingReportHoldsForReview(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	adapter := webhookAdapter(core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_hook"})
	env.addAdapter(adapter)
	payment := initiatedPayment(t, env)

	_, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)
	require.NoError(t, err)

	adapter.parseFn = func(body []byte, params map[string]string) (*output.Notification, error) {
		return &output.Notification{
			TransactionID: "txn_hook",
			Outcome:       core.Outcome{State: core.OutcomeFailed, Reason: "chargeback?"},
		}, nil
	}
	result, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)

	var conflict *core.ReconciliationConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, result)
	assert.False(t, result.Applied)
	assert.Equal(t, core.PaymentStatusCompleted, result.Payment.Status, "stored state stands")
	assert.True(t, result.Payment.NeedsReview)

	stored, gerr := env.payments.GetByID(context.Background(), payment.ID)
	require.NoError(t, gerr)
	assert.True(t, stored.NeedsReview, "the review hold is committed")
	assert.Contains(t, env.publisher.kinds(), output.EventPaymentReview)
}

func TestReconcileFailureThenLateSuccess(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	adapter := webhookAdapter(core.Outcome{State: core.OutcomeFailed, TransactionID: "txn_hook", Reason: "declined"})
	env.addAdapter(adapter)
	initiatedPayment(t, env)

	result, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)
	require.NoError(t, err)
	require.Equal(t, core.PaymentStatusFailed, result.Payment.Status)

	// failed is not terminal: the provider can still confirm success.
	adapter.parseFn = func(body []byte, params map[string]string) (*output.Notification, error) {
		return &output.Notification{
			TransactionID: "txn_hook",
			Outcome:       core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_hook"},
		}, nil
	}
	result, err = env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, core.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t,
		[]output.EventKind{output.EventPaymentFailed, output.EventPaymentCompleted},
		env.publisher.kinds())
}

func TestReconcileResolvesByPaymentID(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	adapter := &stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{}, nil // no gateway ref yet
		},
	}
	env.addAdapter(adapter)
	payment := initiatedPayment(t, env)

	adapter.parseFn = func(body []byte, params map[string]string) (*output.Notification, error) {
		return &output.Notification{
			PaymentID: payment.ID,
			Outcome:   core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_late_ref"},
		}, nil
	}
	result, err := env.callbacks.Reconcile(context.Background(), "sandbox", nil, map[string]string{"payment_id": payment.ID.String()})

	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, "txn_late_ref", result.Payment.TransactionID)
}

func TestReconcileRejectsUnknownGateway(t *testing.T) {
	env := newTestEnv()

	_, err := env.callbacks.Reconcile(context.Background(), "ghost", []byte(`{}`), nil)

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReconcileRejectsUnparseablePayload(t *testing.T) {
	env := newTestEnv()
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		parseFn: func(body []byte, params map[string]string) (*output.Notification, error) {
			return nil, errors.New("garbage")
		},
	})

	_, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`garbage`), nil)

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReconcileUnknownPayment(t *testing.T) {
	env := newTestEnv()
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		parseFn: func(body []byte, params map[string]string) (*output.Notification, error) {
			return &output.Notification{
				TransactionID: "txn_ghost",
				PaymentID:     uuid.New(),
				Outcome:       core.Outcome{State: core.OutcomeSucceeded},
			}, nil
		},
	})

	_, err := env.callbacks.Reconcile(context.Background(), "sandbox", []byte(`{}`), nil)

	assert.ErrorIs(t, err, core.ErrNotFound)
}

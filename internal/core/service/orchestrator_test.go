package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

func initiateReq() input.InitiateRequest {
	return input.InitiateRequest{
		Paymentable: core.Paymentable{Kind: "admission", ID: "app-123"},
		Amount:      1000,
		Currency:    "USD",
		GatewayCode: "sandbox",
		Description: "admission fee",
		SuccessURL:  "https://school.example.com/paid",
		CancelURL:   "https://school.example.com/cancelled",
		Actor:       "parent@example.com",
	}
}

func TestInitiateCreatesPendingPaymentWithRedirect(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			assert.Equal(t, "https://school.example.com/paid", opts.SuccessURL)
			return &output.InitializeResult{
				GatewayRef:  "txn_abc",
				RedirectURL: "https://sandbox.example.com/checkout/txn_abc",
				Raw:         []byte(`{"id":"txn_abc"}`),
			}, nil
		},
	})

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())

	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.example.com/checkout/txn_abc", result.RedirectURL)

	p := result.Payment
	assert.Equal(t, core.PaymentStatusPending, p.Status)
	assert.Equal(t, 35.0, p.FeeAmount, "2.9%% of 1000 plus 6.00 fixed")
	assert.Equal(t, 1035.0, p.TotalAmount)
	assert.Equal(t, 1035.0, p.DueAmount)
	assert.Equal(t, 0.0, p.PaidAmount)
	assert.Equal(t, "txn_abc", p.TransactionID)
	assert.Regexp(t, `^INV-\d{8}-\d{4}$`, p.InvoiceNumber)
	require.Len(t, p.Details, 1)
	assert.Equal(t, "initialize", p.Details[0].Kind)
	assert.Empty(t, env.publisher.kinds(), "initiation alone publishes nothing")
}

func TestInitiateAppliesDiscountAndFine(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{GatewayRef: "txn_1"}, nil
		},
	})

	req := initiateReq()
	req.DiscountAmount = 50
	req.FineAmount = 10
	result, err := env.orchestrator.Initiate(context.Background(), req)

	require.NoError(t, err)
	// 1000 - 50 + 10 + 0 + 35
	assert.Equal(t, 995.0, result.Payment.TotalAmount)
	assert.NoError(t, result.Payment.CheckLedger())
}

func TestInitiateSynchronousSettlement(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{
				GatewayRef: "txn_sync",
				Outcome:    &core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_sync"},
			}, nil
		},
	})

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())

	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, result.Payment.TotalAmount, result.Payment.PaidAmount)
	assert.Equal(t, []output.EventKind{output.EventPaymentCompleted}, env.publisher.kinds())
}

func TestInitiateTimeoutLeavesPaymentPending(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return nil, context.DeadlineExceeded
		},
	})

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())

	var timeout *core.GatewayTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.NotNil(t, result, "the pending payment is returned alongside the error")

	stored, gerr := env.payments.GetByID(context.Background(), result.Payment.ID)
	require.NoError(t, gerr)
	assert.Equal(t, core.PaymentStatusPending, stored.Status, "unknown outcome: no state change")
}

func TestInitiateGatewayErrorKeepsPayment(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return nil, errors.New("connection refused")
		},
	})

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())

	var unavailable *core.GatewayUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.NotNil(t, result)

	stored, gerr := env.payments.GetByID(context.Background(), result.Payment.ID)
	require.NoError(t, gerr)
	assert.Equal(t, core.PaymentStatusPending, stored.Status)
}

func TestInitiateValidation(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())

	var verr *core.ValidationError

	req := initiateReq()
	req.GatewayCode = "nope"
	_, err := env.orchestrator.Initiate(context.Background(), req)
	assert.ErrorAs(t, err, &verr, "unknown gateway")

	inactive := sandboxConfig()
	inactive.Code = "dormant"
	inactive.IsActive = false
	env.addGateway(inactive)
	req = initiateReq()
	req.GatewayCode = "dormant"
	_, err = env.orchestrator.Initiate(context.Background(), req)
	assert.ErrorAs(t, err, &verr, "inactive gateway")

	req = initiateReq()
	req.DiscountAmount = -1
	_, err = env.orchestrator.Initiate(context.Background(), req)
	assert.ErrorAs(t, err, &verr, "negative discount")

	bare := sandboxConfig()
	bare.Code = "bare"
	bare.Credentials = nil
	env.addGateway(bare)
	req = initiateReq()
	req.GatewayCode = "bare"
	var unavailable *core.GatewayUnavailableError
	_, err = env.orchestrator.Initiate(context.Background(), req)
	assert.ErrorAs(t, err, &unavailable, "online gateway without credentials")
}

func TestRecordOfflinePayment(t *testing.T) {
	env := newTestEnv()
	env.addGateway(cashConfig())

	payment, err := env.orchestrator.RecordOfflinePayment(context.Background(), input.OfflinePaymentRequest{
		Paymentable:     core.Paymentable{Kind: "tuition", ID: "student-9"},
		Amount:          300,
		Currency:        "USD",
		GatewayCode:     "cash",
		ReferenceNumber: "receipt-0042",
		Actor:           "registrar@school",
	})

	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, 300.0, payment.PaidAmount)
	assert.Equal(t, 0.0, payment.DueAmount)
	assert.Equal(t, 0.0, payment.FeeAmount)
	assert.Equal(t, "receipt-0042", payment.ReferenceNumber)
	require.NotNil(t, payment.PaymentDate)
	assert.Equal(t, []output.EventKind{output.EventPaymentCompleted}, env.publisher.kinds())
}

func TestRecordOfflinePaymentRejectsOnlineGateway(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())

	_, err := env.orchestrator.RecordOfflinePayment(context.Background(), input.OfflinePaymentRequest{
		Paymentable: core.Paymentable{Kind: "tuition", ID: "student-9"},
		Amount:      300,
		Currency:    "USD",
		GatewayCode: "sandbox",
	})

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetStatusSkipsVerifyForTerminalPayments(t *testing.T) {
	env := newTestEnv()
	env.addGateway(cashConfig())
	adapter := &stubAdapter{code: "cash"}
	env.addAdapter(adapter)

	payment, err := env.orchestrator.RecordOfflinePayment(context.Background(), input.OfflinePaymentRequest{
		Paymentable: core.Paymentable{Kind: "tuition", ID: "s"},
		Amount:      100,
		Currency:    "USD",
		GatewayCode: "cash",
	})
	require.NoError(t, err)

	got, err := env.orchestrator.GetStatus(context.Background(), payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusCompleted, got.Status)
	assert.Equal(t, 0, adapter.verifyCalls)
}

func TestGetStatusVerifiesNonTerminalPayments(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	adapter := &stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{GatewayRef: "txn_v"}, nil
		},
		verifyFn: func(ctx context.Context, p *core.Payment) (*core.Outcome, error) {
			return &core.Outcome{State: core.OutcomeSucceeded, TransactionID: "txn_v"}, nil
		},
	}
	env.addAdapter(adapter)

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())
	require.NoError(t, err)

	got, err := env.orchestrator.GetStatus(context.Background(), result.Payment.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusCompleted, got.Status, "verify settled the payment")
	assert.Equal(t, 1, adapter.verifyCalls)
}

func TestGetStatusSwallowsVerifyFailures(t *testing.T) {
	env := newTestEnv()
	env.addGateway(sandboxConfig())
	env.addAdapter(&stubAdapter{
		code: "sandbox",
		initializeFn: func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
			return &output.InitializeResult{GatewayRef: "txn_x"}, nil
		},
		verifyFn: func(ctx context.Context, p *core.Payment) (*core.Outcome, error) {
			return nil, errors.New("provider down")
		},
	})

	result, err := env.orchestrator.Initiate(context.Background(), initiateReq())
	require.NoError(t, err)

	got, err := env.orchestrator.GetStatus(context.Background(), result.Payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusPending, got.Status, "last-known state on verify failure")
}

func TestGetStatusUnknownReference(t *testing.T) {
	env := newTestEnv()
	_, err := env.orchestrator.GetStatus(context.Background(), "INV-20260101-0001")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListGatewaysFiltersUnconfigured(t *testing.T) {
	env := newTestEnv()
	env.addGateway(cashConfig())
	env.addGateway(sandboxConfig())
	bare := sandboxConfig()
	bare.Code = "bare"
	bare.Credentials = nil
	env.addGateway(bare)

	gateways, err := env.orchestrator.ListGateways(context.Background())
	require.NoError(t, err)

	codes := make([]string, 0, len(gateways))
	for _, g := range gateways {
		codes = append(codes, g.Code)
	}
	assert.ElementsMatch(t, []string{"cash", "sandbox"}, codes)
}

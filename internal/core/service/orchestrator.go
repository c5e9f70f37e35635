package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// PaymentOrchestrator implements the PaymentService input port. It owns the
// payment lifecycle: creation, gateway initiation, and the guarded transition
// primitive every other component reconciles through.
type PaymentOrchestrator struct {
	payments  output.PaymentRepository
	gateways  output.GatewayConfigRepository
	registry  output.GatewayRegistry
	publisher output.EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentOrchestrator creates a new payment orchestrator.
func NewPaymentOrchestrator(
	payments output.PaymentRepository,
	gateways output.GatewayConfigRepository,
	registry output.GatewayRegistry,
	publisher output.EventPublisher,
	gatewayTimeout time.Duration,
	logger *zap.Logger,
) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		payments:  payments,
		gateways:  gateways,
		registry:  registry,
		publisher: publisher,
		timeout:   gatewayTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

var _ input.PaymentService = (*PaymentOrchestrator)(nil)

// Initiate validates the request, creates a pending payment and starts the
// gateway transaction. On gateway unavailability or timeout the pending
// payment is returned alongside the error so it can be retried or inspected;
// it is never deleted.
func (o *PaymentOrchestrator) Initiate(ctx context.Context, req input.InitiateRequest) (*input.InitiateResult, error) {
	cfg, err := o.activeGateway(ctx, req.GatewayCode)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		return nil, &core.GatewayUnavailableError{Gateway: cfg.Code, Err: errors.New("missing credentials")}
	}

	payment, err := o.buildPayment(cfg, buildParams{
		paymentable: req.Paymentable,
		amount:      req.Amount,
		discount:    req.DiscountAmount,
		fine:        req.FineAmount,
		tax:         req.TaxAmount,
		currency:    req.Currency,
		description: req.Description,
		successURL:  req.SuccessURL,
		cancelURL:   req.CancelURL,
		actor:       req.Actor,
	})
	if err != nil {
		return nil, err
	}

	if err := o.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	adapter, err := o.registry.Adapter(cfg.Code)
	if err != nil {
		return &input.InitiateResult{Payment: payment}, &core.GatewayUnavailableError{Gateway: cfg.Code, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	result, err := adapter.Initialize(callCtx, payment, output.InitializeOptions{
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Outcome unknown: leave the payment pending and let the
			// webhook or a later verify call resolve it.
			o.logger.Warn("gateway initialize timed out",
				zap.String("gateway", cfg.Code),
				zap.String("payment_id", payment.ID.String()))
			return &input.InitiateResult{Payment: payment}, &core.GatewayTimeoutError{Gateway: cfg.Code, Op: "initialize"}
		}
		o.logger.Error("gateway initialize failed",
			zap.String("gateway", cfg.Code),
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return &input.InitiateResult{Payment: payment}, &core.GatewayUnavailableError{Gateway: cfg.Code, Err: err}
	}

	payment, err = o.payments.UpdateLocked(ctx, payment.ID, func(p *core.Payment) error {
		if result.GatewayRef != "" {
			p.TransactionID = result.GatewayRef
		}
		if len(result.Raw) > 0 {
			p.AppendDetail("initialize", result.Raw, o.now())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record gateway response: %w", err)
	}

	if result.Outcome != nil {
		payment, err = o.applyOutcome(ctx, payment.ID, *result.Outcome)
		if err != nil {
			return nil, err
		}
	}
	return &input.InitiateResult{
		Payment:      payment,
		RedirectURL:  result.RedirectURL,
		ClientSecret: result.ClientSecret,
	}, nil
}

// RecordOfflinePayment records a cash/cheque payment as completed in a
// single creation step, with no gateway round-trip.
func (o *PaymentOrchestrator) RecordOfflinePayment(ctx context.Context, req input.OfflinePaymentRequest) (*core.Payment, error) {
	cfg, err := o.activeGateway(ctx, req.GatewayCode)
	if err != nil {
		return nil, err
	}
	if cfg.IsOnline {
		return nil, core.NewValidationError("gateway", "%s is an online gateway, use initiate", cfg.Code)
	}

	payment, err := o.buildPayment(cfg, buildParams{
		paymentable: req.Paymentable,
		amount:      req.Amount,
		discount:    req.DiscountAmount,
		fine:        req.FineAmount,
		tax:         req.TaxAmount,
		currency:    req.Currency,
		description: req.Description,
		actor:       req.Actor,
	})
	if err != nil {
		return nil, err
	}

	now := o.now()
	payment.Status = core.PaymentStatusCompleted
	payment.PaidAmount = payment.TotalAmount
	payment.DueAmount = 0
	payment.PaymentDate = &now
	payment.ReferenceNumber = req.ReferenceNumber
	if err := payment.CheckLedger(); err != nil {
		return nil, err
	}

	if err := o.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record offline payment: %w", err)
	}
	o.publish(ctx, output.Event{
		Kind:          output.EventPaymentCompleted,
		PaymentID:     payment.ID,
		InvoiceNumber: payment.InvoiceNumber,
		Amount:        payment.TotalAmount,
		Currency:      string(payment.Currency),
		OccurredAt:    now,
	})
	return payment, nil
}

// GetStatus resolves a payment by uuid or invoice number. Payments that are
// not yet terminal get a best-effort verify against the gateway first;
// verification failures are swallowed and the last-known state returned.
func (o *PaymentOrchestrator) GetStatus(ctx context.Context, ref string) (*core.Payment, error) {
	payment, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if payment.IsTerminal() {
		return payment, nil
	}

	adapter, err := o.registry.Adapter(payment.Method)
	if err != nil {
		return payment, nil // offline or unregistered gateway, nothing to verify
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	out, err := adapter.Verify(callCtx, payment)
	if err != nil {
		o.logger.Warn("verify failed, returning last-known status",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return payment, nil
	}
	updated, err := o.applyOutcome(ctx, payment.ID, *out)
	if err != nil {
		var conflict *core.ReconciliationConflictError
		if errors.As(err, &conflict) {
			// Already logged and held for review; the stored state stands.
			return updated, nil
		}
		return payment, nil
	}
	return updated, nil
}

// ListGateways returns active, configured gateways.
func (o *PaymentOrchestrator) ListGateways(ctx context.Context) ([]*core.PaymentGatewayConfig, error) {
	all, err := o.gateways.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateways: %w", err)
	}
	configured := make([]*core.PaymentGatewayConfig, 0, len(all))
	for _, g := range all {
		if g.Configured() {
			configured = append(configured, g)
		}
	}
	return configured, nil
}

// ChargeResult reports how a synchronous profile charge ended.
type ChargeResult struct {
	Payment *core.Payment
	State   core.OutcomeState

	// Deferred is true when the outcome is unknown (timeout, or an adapter
	// that settles asynchronously); it counts neither as success nor failure.
	Deferred bool
}

// ChargeProfile charges a recurring profile's stored payment method. Used by
// the billing scheduler; the caller must hold the profile's claim.
func (o *PaymentOrchestrator) ChargeProfile(ctx context.Context, profile *core.RecurringPaymentProfile) (*ChargeResult, error) {
	cfg, err := o.activeGateway(ctx, profile.GatewayCode)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		return nil, &core.GatewayUnavailableError{Gateway: cfg.Code, Err: errors.New("missing credentials")}
	}

	payment, err := o.buildPayment(cfg, buildParams{
		paymentable: profile.Owner,
		amount:      profile.Amount,
		currency:    profile.Currency,
		description: profile.Description,
		actor:       "billing-scheduler",
	})
	if err != nil {
		return nil, err
	}
	payment.ReferenceNumber = "recurring:" + profile.ID.String()
	if err := o.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create recurring payment: %w", err)
	}

	adapter, err := o.registry.Adapter(cfg.Code)
	if err != nil {
		return nil, &core.GatewayUnavailableError{Gateway: cfg.Code, Err: err}
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	result, err := adapter.Initialize(callCtx, payment, output.InitializeOptions{
		MethodToken: profile.MethodToken,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("recurring charge timed out, outcome unknown",
				zap.String("profile_id", profile.ID.String()),
				zap.String("payment_id", payment.ID.String()))
			return &ChargeResult{Payment: payment, State: core.OutcomePending, Deferred: true}, nil
		}
		return &ChargeResult{Payment: payment, State: core.OutcomeFailed}, nil
	}

	payment, uerr := o.payments.UpdateLocked(ctx, payment.ID, func(p *core.Payment) error {
		if result.GatewayRef != "" {
			p.TransactionID = result.GatewayRef
		}
		if len(result.Raw) > 0 {
			p.AppendDetail("charge", result.Raw, o.now())
		}
		return nil
	})
	if uerr != nil {
		return nil, fmt.Errorf("failed to record charge response: %w", uerr)
	}

	if result.Outcome == nil {
		// Adapter settles asynchronously; the webhook will reconcile.
		return &ChargeResult{Payment: payment, State: core.OutcomePending, Deferred: true}, nil
	}
	payment, err = o.applyOutcome(ctx, payment.ID, *result.Outcome)
	if err != nil {
		return &ChargeResult{Payment: payment, State: core.OutcomeFailed}, nil
	}
	state := core.OutcomeFailed
	if payment.Status == core.PaymentStatusCompleted {
		state = core.OutcomeSucceeded
	}
	return &ChargeResult{Payment: payment, State: state}, nil
}

// applyOutcome is the guarded transition primitive: under the payment's row
// lock it applies a gateway outcome idempotently, runs the ledger invariant
// check and flags anomalies for review. Conflicting terminal reports commit
// the review hold and return a ReconciliationConflictError; the stored state
// is never overwritten.
func (o *PaymentOrchestrator) applyOutcome(ctx context.Context, id uuid.UUID, out core.Outcome) (*core.Payment, error) {
	var (
		applied      bool
		conflictErr  error
		invariantErr error
	)
	payment, err := o.payments.UpdateLocked(ctx, id, func(p *core.Payment) error {
		changed, aerr := p.ApplyOutcome(out, o.now())
		if aerr != nil {
			var conflict *core.ReconciliationConflictError
			if errors.As(aerr, &conflict) {
				p.HoldForReview(aerr.Error())
				conflictErr = aerr
				return nil // commit the hold, keep the stored state
			}
			return aerr
		}
		applied = changed
		if !changed {
			return nil
		}
		if lerr := p.CheckLedger(); lerr != nil {
			p.HoldForReview(lerr.Error())
			invariantErr = lerr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case invariantErr != nil:
		// A logic defect, not a business error: alert loudly and hold.
		o.logger.Error("ledger invariant violated, payment held for review",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(invariantErr))
		o.publish(ctx, output.Event{
			Kind:          output.EventPaymentReview,
			PaymentID:     payment.ID,
			InvoiceNumber: payment.InvoiceNumber,
			Detail:        invariantErr.Error(),
			OccurredAt:    o.now(),
		})
	case conflictErr != nil:
		o.logger.Error("reconciliation conflict, payment held for review",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(conflictErr))
		o.publish(ctx, output.Event{
			Kind:          output.EventPaymentReview,
			PaymentID:     payment.ID,
			InvoiceNumber: payment.InvoiceNumber,
			Detail:        conflictErr.Error(),
			OccurredAt:    o.now(),
		})
		return payment, conflictErr
	case applied && payment.Status == core.PaymentStatusCompleted:
		o.publish(ctx, output.Event{
			Kind:          output.EventPaymentCompleted,
			PaymentID:     payment.ID,
			InvoiceNumber: payment.InvoiceNumber,
			Amount:        payment.TotalAmount,
			Currency:      string(payment.Currency),
			OccurredAt:    o.now(),
		})
	case applied && payment.Status == core.PaymentStatusFailed:
		o.publish(ctx, output.Event{
			Kind:          output.EventPaymentFailed,
			PaymentID:     payment.ID,
			InvoiceNumber: payment.InvoiceNumber,
			Amount:        payment.TotalAmount,
			Currency:      string(payment.Currency),
			Detail:        out.Reason,
			OccurredAt:    o.now(),
		})
	}
	return payment, nil
}

type buildParams struct {
	paymentable core.Paymentable
	amount      float64
	discount    float64
	fine        float64
	tax         float64
	currency    core.Currency
	description string
	successURL  string
	cancelURL   string
	actor       string
}

// buildPayment is the payment factory: it validates amounts, computes the
// gateway fee and populates every money field before the entity exists.
func (o *PaymentOrchestrator) buildPayment(cfg *core.PaymentGatewayConfig, params buildParams) (*core.Payment, error) {
	if params.discount < 0 || params.fine < 0 || params.tax < 0 {
		return nil, core.NewValidationError("amount", "discount, fine and tax must not be negative")
	}
	fee, err := CalculateFee(cfg, params.amount, params.currency)
	if err != nil {
		return nil, err
	}
	total := core.Round2(params.amount - params.discount + params.fine + params.tax + fee)
	if total <= 0 {
		return nil, core.NewValidationError("amount", "total amount %.2f must be positive", total)
	}

	p := &core.Payment{
		ID:             uuid.New(),
		Paymentable:    params.paymentable,
		Amount:         params.amount,
		DiscountAmount: params.discount,
		FineAmount:     params.fine,
		TaxAmount:      params.tax,
		FeeAmount:      fee,
		TotalAmount:    total,
		PaidAmount:     0,
		DueAmount:      total,
		Currency:       params.currency,
		Method:         cfg.Code,
		Status:         core.PaymentStatusPending,
		Description:    params.description,
		SuccessURL:     params.successURL,
		CancelURL:      params.cancelURL,
		CreatedBy:      params.actor,
	}
	if err := p.CheckLedger(); err != nil {
		return nil, err
	}
	return p, nil
}

func (o *PaymentOrchestrator) activeGateway(ctx context.Context, code string) (*core.PaymentGatewayConfig, error) {
	if code == "" {
		return nil, core.NewValidationError("gateway", "gateway code is required")
	}
	cfg, err := o.gateways.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewValidationError("gateway", "unknown gateway %s", code)
		}
		return nil, fmt.Errorf("failed to load gateway %s: %w", code, err)
	}
	if !cfg.IsActive {
		return nil, core.NewValidationError("gateway", "gateway %s is not active", code)
	}
	return cfg, nil
}

func (o *PaymentOrchestrator) resolve(ctx context.Context, ref string) (*core.Payment, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return o.payments.GetByID(ctx, id)
	}
	return o.payments.GetByInvoiceNumber(ctx, ref)
}

// publish sends a domain event; publish failures are logged and never abort
// the transition that produced them.
func (o *PaymentOrchestrator) publish(ctx context.Context, evt output.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishEvent(ctx, evt); err != nil {
		o.logger.Warn("failed to publish event",
			zap.String("kind", string(evt.Kind)),
			zap.Error(err))
	}
}

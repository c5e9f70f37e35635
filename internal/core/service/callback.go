package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// CallbackProcessor reconciles gateway notifications. Synchronous redirect
// callbacks and asynchronous webhooks both funnel through Reconcile because
// providers may deliver either or both for the same transaction, possibly
// more than once and out of order.
type CallbackProcessor struct {
	orchestrator *PaymentOrchestrator
	payments     output.PaymentRepository
	registry     output.GatewayRegistry
	logger       *zap.Logger
}

// NewCallbackProcessor creates a new callback processor.
func NewCallbackProcessor(
	orchestrator *PaymentOrchestrator,
	payments output.PaymentRepository,
	registry output.GatewayRegistry,
	logger *zap.Logger,
) *CallbackProcessor {
	return &CallbackProcessor{
		orchestrator: orchestrator,
		payments:     payments,
		registry:     registry,
		logger:       logger,
	}
}

var _ input.CallbackService = (*CallbackProcessor)(nil)

// Reconcile normalizes the provider payload through the gateway's adapter,
// resolves the target payment and applies the outcome through the
// orchestrator's idempotent transition primitive.
//
// Redundant deliveries return Applied=false with a nil error so the
// transport can acknowledge them and the provider stops retrying. A
// conflicting terminal report returns a ReconciliationConflictError after
// the payment has been flagged for review.
func (c *CallbackProcessor) Reconcile(ctx context.Context, gatewayCode string, body []byte, params map[string]string) (*input.ReconcileResult, error) {
	adapter, err := c.registry.Adapter(gatewayCode)
	if err != nil {
		return nil, core.NewValidationError("gateway", "unknown gateway %s", gatewayCode)
	}

	note, err := adapter.ParseNotification(body, params)
	if err != nil {
		return nil, core.NewValidationError("payload", "unparseable %s notification: %v", gatewayCode, err)
	}

	payment, err := c.resolvePayment(ctx, note)
	if err != nil {
		return nil, err
	}

	before := payment.Status
	payment, err = c.orchestrator.applyOutcome(ctx, payment.ID, note.Outcome)
	if err != nil {
		var conflict *core.ReconciliationConflictError
		if errors.As(err, &conflict) {
			// The anomaly is recorded; hand it to the caller so the
			// transport can decide how to acknowledge.
			return &input.ReconcileResult{
				Payment:    payment,
				Applied:    false,
				SuccessURL: payment.SuccessURL,
				CancelURL:  payment.CancelURL,
			}, err
		}
		return nil, err
	}

	applied := payment.Status != before
	if !applied {
		c.logger.Info("duplicate gateway notification, no-op",
			zap.String("gateway", gatewayCode),
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(payment.Status)))
	}
	return &input.ReconcileResult{
		Payment:    payment,
		Applied:    applied,
		SuccessURL: payment.SuccessURL,
		CancelURL:  payment.CancelURL,
	}, nil
}

// resolvePayment finds the payment a notification refers to, preferring the
// gateway-assigned transaction id over a caller-embedded payment id.
func (c *CallbackProcessor) resolvePayment(ctx context.Context, note *output.Notification) (*core.Payment, error) {
	if note.TransactionID != "" {
		p, err := c.payments.GetByTransactionID(ctx, note.TransactionID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve payment by transaction id: %w", err)
		}
	}
	if note.PaymentID != uuid.Nil {
		p, err := c.payments.GetByID(ctx, note.PaymentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve payment by id: %w", err)
		}
	}
	return nil, fmt.Errorf("notification matches no payment: %w", core.ErrNotFound)
}

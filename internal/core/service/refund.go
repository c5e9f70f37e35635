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

// RefundEngine implements the RefundService input port. All refundable-
// remaining checks and ledger settlements run inside the owning payment's
// row lock, so concurrent refunds against one payment serialize and can
// never jointly over-refund it.
type RefundEngine struct {
	refunds   output.RefundRepository
	payments  output.PaymentRepository
	gateways  output.GatewayConfigRepository
	registry  output.GatewayRegistry
	publisher output.EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRefundEngine creates a new refund engine.
func NewRefundEngine(
	refunds output.RefundRepository,
	payments output.PaymentRepository,
	gateways output.GatewayConfigRepository,
	registry output.GatewayRegistry,
	publisher output.EventPublisher,
	gatewayTimeout time.Duration,
	logger *zap.Logger,
) *RefundEngine {
	return &RefundEngine{
		refunds:   refunds,
		payments:  payments,
		gateways:  gateways,
		registry:  registry,
		publisher: publisher,
		timeout:   gatewayTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

var _ input.RefundService = (*RefundEngine)(nil)

// InitiateRefund validates and creates a pending refund. The refundable
// remainder is computed and checked in the same critical section that
// inserts the refund row; a rejected request persists nothing.
func (e *RefundEngine) InitiateRefund(ctx context.Context, req input.RefundRequest) (*core.Refund, error) {
	if req.Amount <= 0 {
		return nil, core.NewValidationError("amount", "must be greater than zero")
	}

	refund, err := e.refunds.CreateForPayment(ctx, req.PaymentID, func(p *core.Payment, reservedTotal float64) (*core.Refund, error) {
		switch p.Status {
		case core.PaymentStatusCompleted, core.PaymentStatusPartiallyRefunded:
		default:
			return nil, core.NewValidationError("payment", "payment is %s, only completed payments can be refunded", p.Status)
		}
		remaining := p.RefundableRemaining(reservedTotal)
		if req.Amount > remaining {
			return nil, core.NewValidationError("amount", "%.2f exceeds refundable remaining %.2f", req.Amount, remaining)
		}

		manual, merr := e.isManualMethod(ctx, p.Method)
		if merr != nil {
			return nil, merr
		}
		return &core.Refund{
			ID:        uuid.New(),
			PaymentID: p.ID,
			Amount:    core.Round2(req.Amount),
			Currency:  p.Currency,
			Reason:    req.Reason,
			Status:    core.RefundStatusPending,
			Manual:    manual,
			Metadata:  req.Metadata,
			CreatedBy: req.Actor,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("refund initiated",
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_id", refund.PaymentID.String()),
		zap.Float64("amount", refund.Amount),
		zap.Bool("manual", refund.Manual))
	return refund, nil
}

// ProcessRefund drives a pending refund to completion: pending->processing,
// the gateway call (skipped for manual refunds), then processing->completed
// or processing->failed. Completion settles the owning payment atomically.
func (e *RefundEngine) ProcessRefund(ctx context.Context, refundID uuid.UUID, actor string) (*core.Refund, error) {
	refund, err := e.refunds.UpdateLocked(ctx, refundID, func(r *core.Refund) error {
		return r.StartProcessing(actor)
	})
	if err != nil {
		return nil, err
	}

	gatewayRef := ""
	if !refund.Manual {
		payment, perr := e.payments.GetByID(ctx, refund.PaymentID)
		if perr != nil {
			return nil, fmt.Errorf("failed to load payment for refund: %w", perr)
		}
		adapter, aerr := e.registry.Adapter(payment.Method)
		if aerr != nil {
			return e.failRefund(ctx, refundID, fmt.Sprintf("no adapter for gateway %s", payment.Method))
		}
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		ref, rerr := adapter.Refund(callCtx, payment, refund.Amount)
		cancel()
		if rerr != nil {
			if errors.Is(rerr, context.DeadlineExceeded) {
				// Unknown outcome: leave the refund in processing rather
				// than guessing; a retry of ProcessRefund or manual review
				// resolves it.
				e.logger.Warn("gateway refund timed out, refund left processing",
					zap.String("refund_id", refundID.String()))
				return refund, &core.GatewayTimeoutError{Gateway: payment.Method, Op: "refund"}
			}
			return e.failRefund(ctx, refundID, rerr.Error())
		}
		gatewayRef = ref
	}

	refund, payment, err := e.refunds.Settle(ctx, refundID, func(r *core.Refund, p *core.Payment) error {
		if err := r.Complete(gatewayRef, e.now()); err != nil {
			return err
		}
		p.ApplyRefund(r.Amount)
		if lerr := p.CheckLedger(); lerr != nil {
			p.HoldForReview(lerr.Error())
			e.logger.Error("ledger invariant violated settling refund",
				zap.String("payment_id", p.ID.String()),
				zap.String("refund_id", r.ID.String()),
				zap.Error(lerr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, output.Event{
		Kind:          output.EventRefundCompleted,
		PaymentID:     payment.ID,
		RefundID:      refund.ID,
		InvoiceNumber: payment.InvoiceNumber,
		Amount:        refund.Amount,
		Currency:      string(refund.Currency),
		OccurredAt:    e.now(),
	})
	return refund, nil
}

// CancelRefund cancels a still-pending refund; it never touches the ledger.
func (e *RefundEngine) CancelRefund(ctx context.Context, refundID uuid.UUID, reason, actor string) (*core.Refund, error) {
	refund, err := e.refunds.UpdateLocked(ctx, refundID, func(r *core.Refund) error {
		if err := r.Cancel(reason); err != nil {
			return err
		}
		r.ProcessedBy = actor
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("refund cancelled",
		zap.String("refund_id", refund.ID.String()),
		zap.String("reason", reason))
	return refund, nil
}

// GetRefund retrieves a refund by ID.
func (e *RefundEngine) GetRefund(ctx context.Context, refundID uuid.UUID) (*core.Refund, error) {
	return e.refunds.GetByID(ctx, refundID)
}

// ListRefunds lists all refunds recorded against a payment.
func (e *RefundEngine) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*core.Refund, error) {
	return e.refunds.ListByPayment(ctx, paymentID)
}

func (e *RefundEngine) failRefund(ctx context.Context, refundID uuid.UUID, reason string) (*core.Refund, error) {
	refund, err := e.refunds.UpdateLocked(ctx, refundID, func(r *core.Refund) error {
		return r.Fail(reason, e.now())
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, output.Event{
		Kind:       output.EventRefundFailed,
		PaymentID:  refund.PaymentID,
		RefundID:   refund.ID,
		Amount:     refund.Amount,
		Currency:   string(refund.Currency),
		Detail:     reason,
		OccurredAt: e.now(),
	})
	return refund, nil
}

// isManualMethod reports whether a gateway settles refunds by manual
// bookkeeping (cash, cheque) instead of a provider call.
func (e *RefundEngine) isManualMethod(ctx context.Context, code string) (bool, error) {
	cfg, err := e.gateways.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Gateway config has gone away since the payment was taken;
			// treat the refund as manual bookkeeping.
			return true, nil
		}
		return false, fmt.Errorf("failed to load gateway %s: %w", code, err)
	}
	return !cfg.IsOnline, nil
}

func (e *RefundEngine) publish(ctx context.Context, evt output.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishEvent(ctx, evt); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("kind", string(evt.Kind)),
			zap.Error(err))
	}
}

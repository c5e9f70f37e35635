package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// LogNotifier is a stand-in for the school platform's notification
// subsystem: it records every event it would have delivered. The real
// template-rendering and delivery pipeline lives outside this service and
// plugs in behind the same port.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs instead of delivering.
func NewLogNotifier(logger *zap.Logger) output.Notifier {
	return &LogNotifier{logger: logger}
}

// Notify records the event.
func (n *LogNotifier) Notify(ctx context.Context, evt output.Event) error {
	n.logger.Info("notification",
		zap.String("kind", string(evt.Kind)),
		zap.String("payment_id", evt.PaymentID.String()),
		zap.String("refund_id", evt.RefundID.String()),
		zap.String("profile_id", evt.ProfileID.String()),
		zap.String("invoice_number", evt.InvoiceNumber),
		zap.Float64("amount", evt.Amount),
		zap.String("currency", evt.Currency),
		zap.String("detail", evt.Detail),
	)
	return nil
}

package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
)

// WebhookHandler receives asynchronous gateway notifications. Webhooks
// (server-to-server) and callbacks (user redirects) share the reconciliation
// path; only the response shape differs.
type WebhookHandler struct {
	callbackService input.CallbackService
	logger          *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(callbackService input.CallbackService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		callbackService: callbackService,
		logger:          logger,
	}
}

// HandleWebhook processes a provider webhook. Business-level rejections
// (unparseable payloads, unknown payments, conflicting terminal states)
// return 2xx so the provider stops retrying a delivery that will never
// succeed; non-2xx is reserved for infrastructure failures, which a retry
// may fix.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	gateway := c.Param("gateway")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read request body",
		})
	}

	result, err := h.callbackService.Reconcile(c.Request().Context(), gateway, body, queryParams(c))
	if err != nil {
		var verr *core.ValidationError
		var conflict *core.ReconciliationConflictError
		switch {
		case errors.As(err, &verr), errors.Is(err, core.ErrNotFound):
			h.logger.Warn("webhook rejected",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			return c.JSON(http.StatusOK, map[string]string{"status": "rejected", "reason": err.Error()})
		case errors.As(err, &conflict):
			h.logger.Warn("webhook conflict, payment held for review",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			return c.JSON(http.StatusOK, map[string]string{"status": "conflict", "reason": err.Error()})
		default:
			h.logger.Error("webhook processing failed",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		}
	}

	status := "applied"
	if !result.Applied {
		status = "duplicate"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":     status,
		"payment_id": result.Payment.ID.String(),
	})
}

// HandleCallback processes a user-facing gateway redirect. When the payment
// recorded a success/cancel URL at initiation the user is redirected there
// with the outcome in the query string; otherwise a JSON body is returned.
func (h *WebhookHandler) HandleCallback(c echo.Context) error {
	gateway := c.Param("gateway")

	var body []byte
	if c.Request().Method == http.MethodPost {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to read request body",
			})
		}
		body = b
	}

	result, err := h.callbackService.Reconcile(c.Request().Context(), gateway, body, queryParams(c))
	if err != nil && (result == nil || result.Payment == nil) {
		return writeError(c, err)
	}

	payment := result.Payment
	target := result.SuccessURL
	if payment.Status != core.PaymentStatusCompleted {
		target = result.CancelURL
	}
	if target == "" {
		return c.JSON(http.StatusOK, toPaymentResponse(payment))
	}

	u, perr := url.Parse(target)
	if perr != nil {
		h.logger.Warn("invalid redirect URL on payment",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(perr),
		)
		return c.JSON(http.StatusOK, toPaymentResponse(payment))
	}
	q := u.Query()
	q.Set("payment_id", payment.ID.String())
	q.Set("status", string(payment.Status))
	q.Set("invoice_number", payment.InvoiceNumber)
	if payment.TransactionID != "" {
		q.Set("transaction_id", payment.TransactionID)
	}
	u.RawQuery = q.Encode()

	return c.Redirect(http.StatusFound, u.String())
}

func queryParams(c echo.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.QueryParams() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolpay/payment-gateway/internal/core"
)

// PaymentResponse represents the HTTP response for a payment
type PaymentResponse struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`

	PaymentableKind string `json:"paymentable_kind"`
	PaymentableID   string `json:"paymentable_id"`

	Amount         float64 `json:"amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FineAmount     float64 `json:"fine_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	FeeAmount      float64 `json:"fee_amount"`
	TotalAmount    float64 `json:"total_amount"`
	PaidAmount     float64 `json:"paid_amount"`
	DueAmount      float64 `json:"due_amount"`

	Currency      string `json:"currency"`
	Method        string `json:"payment_method"`
	Status        string `json:"payment_status"`
	PaymentDate   string `json:"payment_date,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	NeedsReview   bool   `json:"needs_review"`
	CreatedAt     string `json:"created_at"`
}

func toPaymentResponse(p *core.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:              p.ID.String(),
		InvoiceNumber:   p.InvoiceNumber,
		PaymentableKind: p.Paymentable.Kind,
		PaymentableID:   p.Paymentable.ID,
		Amount:          p.Amount,
		DiscountAmount:  p.DiscountAmount,
		FineAmount:      p.FineAmount,
		TaxAmount:       p.TaxAmount,
		FeeAmount:       p.FeeAmount,
		TotalAmount:     p.TotalAmount,
		PaidAmount:      p.PaidAmount,
		DueAmount:       p.DueAmount,
		Currency:        string(p.Currency),
		Method:          p.Method,
		Status:          string(p.Status),
		TransactionID:   p.TransactionID,
		NeedsReview:     p.NeedsReview,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaymentDate != nil {
		resp.PaymentDate = p.PaymentDate.Format(time.RFC3339)
	}
	return resp
}

// RefundResponse represents the HTTP response for a refund
type RefundResponse struct {
	ID            string  `json:"id"`
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Reason        string  `json:"reason,omitempty"`
	Status        string  `json:"status"`
	Manual        bool    `json:"manual"`
	TransactionID string  `json:"transaction_id,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	ProcessedBy   string  `json:"processed_by,omitempty"`
	ProcessedAt   string  `json:"processed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toRefundResponse(r *core.Refund) RefundResponse {
	resp := RefundResponse{
		ID:            r.ID.String(),
		PaymentID:     r.PaymentID.String(),
		Amount:        r.Amount,
		Currency:      string(r.Currency),
		Reason:        r.Reason,
		Status:        string(r.Status),
		Manual:        r.Manual,
		TransactionID: r.TransactionID,
		FailureReason: r.FailureReason,
		ProcessedBy:   r.ProcessedBy,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.ProcessedAt != nil {
		resp.ProcessedAt = r.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// ProfileResponse represents the HTTP response for a recurring profile
type ProfileResponse struct {
	ID               string  `json:"id"`
	OwnerKind        string  `json:"owner_kind"`
	OwnerID          string  `json:"owner_id"`
	GatewayCode      string  `json:"gateway_code"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	BillingPeriod    string  `json:"billing_period"`
	BillingFrequency int     `json:"billing_frequency"`
	StartDate        string  `json:"start_date"`
	NextBillingDate  string  `json:"next_billing_date"`
	EndDate          string  `json:"end_date,omitempty"`
	Status           string  `json:"status"`
	FailureCount     int     `json:"failure_count"`
	MaxFailures      int     `json:"max_failures"`
	CreatedAt        string  `json:"created_at"`
}

func toProfileResponse(p *core.RecurringPaymentProfile) ProfileResponse {
	resp := ProfileResponse{
		ID:               p.ID.String(),
		OwnerKind:        p.Owner.Kind,
		OwnerID:          p.Owner.ID,
		GatewayCode:      p.GatewayCode,
		Amount:           p.Amount,
		Currency:         string(p.Currency),
		BillingPeriod:    string(p.BillingPeriod),
		BillingFrequency: p.BillingFrequency,
		StartDate:        p.StartDate.Format(time.RFC3339),
		NextBillingDate:  p.NextBillingDate.Format(time.RFC3339),
		Status:           string(p.Status),
		FailureCount:     p.FailureCount,
		MaxFailures:      p.MaxFailures,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
	if p.EndDate != nil {
		resp.EndDate = p.EndDate.Format(time.RFC3339)
	}
	return resp
}

// actor reads the explicit acting principal from the request. Authentication
// itself lives outside this service.
func actor(c echo.Context) string {
	if a := c.Request().Header.Get("X-Actor-Id"); a != "" {
		return a
	}
	return "anonymous"
}

// writeError maps the core error taxonomy onto HTTP status codes.
func writeError(c echo.Context, err error) error {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error()})
	}
	if errors.Is(err, core.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	var unavailable *core.GatewayUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": unavailable.Error()})
	}
	var timeout *core.GatewayTimeoutError
	if errors.As(err, &timeout) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": timeout.Error()})
	}
	var conflict *core.ReconciliationConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, map[string]string{"error": conflict.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

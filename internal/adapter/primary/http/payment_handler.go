package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
)

// PaymentHandler is a primary adapter (HTTP handler)
type PaymentHandler struct {
	paymentService input.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService input.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// InitiatePaymentRequest represents the HTTP request to initiate a payment
type InitiatePaymentRequest struct {
	PaymentableKind string            `json:"paymentable_kind"`
	PaymentableID   string            `json:"paymentable_id"`
	Amount          float64           `json:"amount"`
	DiscountAmount  float64           `json:"discount_amount"`
	FineAmount      float64           `json:"fine_amount"`
	TaxAmount       float64           `json:"tax_amount"`
	Currency        string            `json:"currency"`
	GatewayCode     string            `json:"gateway_code"`
	Description     string            `json:"description"`
	SuccessURL      string            `json:"success_url"`
	CancelURL       string            `json:"cancel_url"`
	Metadata        map[string]string `json:"metadata"`
}

// InitiatePaymentResponse carries the created payment plus whatever the
// gateway handed back for the client.
type InitiatePaymentResponse struct {
	Payment      PaymentResponse `json:"payment"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

// InitiatePayment handles payment initiation against an online gateway
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	result, err := h.paymentService.Initiate(c.Request().Context(), input.InitiateRequest{
		Paymentable:    core.Paymentable{Kind: req.PaymentableKind, ID: req.PaymentableID},
		Amount:         req.Amount,
		DiscountAmount: req.DiscountAmount,
		FineAmount:     req.FineAmount,
		TaxAmount:      req.TaxAmount,
		Currency:       core.Currency(req.Currency),
		GatewayCode:    req.GatewayCode,
		Description:    req.Description,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Metadata:       req.Metadata,
		Actor:          actor(c),
	})
	if err != nil {
		// The pending payment survives gateway failures so the client can
		// retry or poll; include it in the error body when present.
		var unavailable *core.GatewayUnavailableError
		var timeout *core.GatewayTimeoutError
		if (errors.As(err, &unavailable) || errors.As(err, &timeout)) && result != nil && result.Payment != nil {
			status := http.StatusBadGateway
			if errors.As(err, &timeout) {
				status = http.StatusGatewayTimeout
			}
			return c.JSON(status, map[string]any{
				"error":   err.Error(),
				"payment": toPaymentResponse(result.Payment),
			})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, InitiatePaymentResponse{
		Payment:      toPaymentResponse(result.Payment),
		RedirectURL:  result.RedirectURL,
		ClientSecret: result.ClientSecret,
	})
}

// OfflinePaymentHTTPRequest represents the HTTP request to record a cash or
// cheque payment.
type OfflinePaymentHTTPRequest struct {
	PaymentableKind string  `json:"paymentable_kind"`
	PaymentableID   string  `json:"paymentable_id"`
	Amount          float64 `json:"amount"`
	DiscountAmount  float64 `json:"discount_amount"`
	FineAmount      float64 `json:"fine_amount"`
	TaxAmount       float64 `json:"tax_amount"`
	Currency        string  `json:"currency"`
	GatewayCode     string  `json:"gateway_code"`
	ReferenceNumber string  `json:"reference_number"`
	Description     string  `json:"description"`
}

// RecordOfflinePayment handles manual cash/cheque payment recording
func (h *PaymentHandler) RecordOfflinePayment(c echo.Context) error {
	var req OfflinePaymentHTTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	payment, err := h.paymentService.RecordOfflinePayment(c.Request().Context(), input.OfflinePaymentRequest{
		Paymentable:     core.Paymentable{Kind: req.PaymentableKind, ID: req.PaymentableID},
		Amount:          req.Amount,
		DiscountAmount:  req.DiscountAmount,
		FineAmount:      req.FineAmount,
		TaxAmount:       req.TaxAmount,
		Currency:        core.Currency(req.Currency),
		GatewayCode:     req.GatewayCode,
		ReferenceNumber: req.ReferenceNumber,
		Description:     req.Description,
		Actor:           actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, toPaymentResponse(payment))
}

// GetPayment resolves a payment by id or invoice number
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	ref := c.Param("id")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "payment reference is required",
		})
	}

	payment, err := h.paymentService.GetStatus(c.Request().Context(), ref)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

// GatewayResponse represents one entry in the gateway catalog
type GatewayResponse struct {
	Code                string   `json:"code"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	IsOnline            bool     `json:"is_online"`
	FeePercentage       float64  `json:"fee_percentage"`
	FeeFixed            float64  `json:"fee_fixed"`
	MinAmount           float64  `json:"min_amount"`
	MaxAmount           float64  `json:"max_amount"`
	SupportedCurrencies []string `json:"supported_currencies"`
}

// ListGateways returns the catalog of active, configured gateways
func (h *PaymentHandler) ListGateways(c echo.Context) error {
	gateways, err := h.paymentService.ListGateways(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	resp := make([]GatewayResponse, 0, len(gateways))
	for _, g := range gateways {
		currencies := make([]string, 0, len(g.SupportedCurrencies))
		for _, cur := range g.SupportedCurrencies {
			currencies = append(currencies, string(cur))
		}
		resp = append(resp, GatewayResponse{
			Code:                g.Code,
			Name:                g.Name,
			Type:                g.Type,
			IsOnline:            g.IsOnline,
			FeePercentage:       g.FeePercentage,
			FeeFixed:            g.FeeFixed,
			MinAmount:           g.MinAmount,
			MaxAmount:           g.MaxAmount,
			SupportedCurrencies: currencies,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"gateways": resp})
}

package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schoolpay/payment-gateway/internal/port/input"
)

// RefundHandler is a primary adapter for the refund lifecycle
type RefundHandler struct {
	refundService input.RefundService
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(refundService input.RefundService) *RefundHandler {
	return &RefundHandler{
		refundService: refundService,
	}
}

// CreateRefundRequest represents the HTTP request to initiate a refund
type CreateRefundRequest struct {
	Amount   float64           `json:"amount"`
	Reason   string            `json:"reason"`
	Metadata map[string]string `json:"metadata"`
}

// CreateRefund initiates a refund against a completed payment
func (h *RefundHandler) CreateRefund(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid payment ID",
		})
	}

	var req CreateRefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	refund, err := h.refundService.InitiateRefund(c.Request().Context(), input.RefundRequest{
		PaymentID: paymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Metadata:  req.Metadata,
		Actor:     actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, toRefundResponse(refund))
}

// ProcessRefund drives a pending refund through the gateway to settlement
func (h *RefundHandler) ProcessRefund(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid refund ID",
		})
	}

	refund, err := h.refundService.ProcessRefund(c.Request().Context(), id, actor(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toRefundResponse(refund))
}

// CancelRefundRequest carries the cancellation reason
type CancelRefundRequest struct {
	Reason string `json:"reason"`
}

// CancelRefund cancels a still-pending refund
func (h *RefundHandler) CancelRefund(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid refund ID",
		})
	}

	var req CancelRefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	refund, err := h.refundService.CancelRefund(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toRefundResponse(refund))
}

// GetRefund retrieves one refund by id
func (h *RefundHandler) GetRefund(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid refund ID",
		})
	}

	refund, err := h.refundService.GetRefund(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toRefundResponse(refund))
}

// ListRefunds lists all refunds of one payment
func (h *RefundHandler) ListRefunds(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid payment ID",
		})
	}

	refunds, err := h.refundService.ListRefunds(c.Request().Context(), paymentID)
	if err != nil {
		return writeError(c, err)
	}

	resp := make([]RefundResponse, 0, len(refunds))
	for _, r := range refunds {
		resp = append(resp, toRefundResponse(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"refunds": resp})
}

package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
)

// BillingHandler is a primary adapter for recurring payment profiles
type BillingHandler struct {
	billingService input.BillingService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService input.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
	}
}

// CreateProfileHTTPRequest represents the HTTP request to create a recurring
// payment profile.
type CreateProfileHTTPRequest struct {
	OwnerKind        string  `json:"owner_kind"`
	OwnerID          string  `json:"owner_id"`
	GatewayCode      string  `json:"gateway_code"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Description      string  `json:"description"`
	BillingPeriod    string  `json:"billing_period"`
	BillingFrequency int     `json:"billing_frequency"`
	StartDate        string  `json:"start_date"` // RFC 3339
	EndDate          string  `json:"end_date"`   // RFC 3339, optional
	MethodToken      string  `json:"method_token"`
	MaxFailures      int     `json:"max_failures"`
}

// CreateProfile creates an active recurring profile
func (h *BillingHandler) CreateProfile(c echo.Context) error {
	var req CreateProfileHTTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "start_date must be RFC 3339",
		})
	}
	var endDate *time.Time
	if req.EndDate != "" {
		t, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "end_date must be RFC 3339",
			})
		}
		endDate = &t
	}

	profile, err := h.billingService.CreateProfile(c.Request().Context(), input.CreateProfileRequest{
		Owner:            core.Paymentable{Kind: req.OwnerKind, ID: req.OwnerID},
		GatewayCode:      req.GatewayCode,
		Amount:           req.Amount,
		Currency:         core.Currency(req.Currency),
		Description:      req.Description,
		BillingPeriod:    core.BillingPeriod(req.BillingPeriod),
		BillingFrequency: req.BillingFrequency,
		StartDate:        startDate,
		EndDate:          endDate,
		MethodToken:      req.MethodToken,
		MaxFailures:      req.MaxFailures,
		Actor:            actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, toProfileResponse(profile))
}

// GetProfile retrieves one recurring profile by id
func (h *BillingHandler) GetProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid profile ID",
		})
	}

	profile, err := h.billingService.GetProfile(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// ReactivateProfile re-enables a suspended profile
func (h *BillingHandler) ReactivateProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid profile ID",
		})
	}

	profile, err := h.billingService.Reactivate(c.Request().Context(), id, actor(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// CancelProfileRequest carries the cancellation reason
type CancelProfileRequest struct {
	Reason string `json:"reason"`
}

// CancelProfile ends a profile permanently
func (h *BillingHandler) CancelProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid profile ID",
		})
	}

	var req CancelProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	profile, err := h.billingService.Cancel(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// BillingRunResponse summarizes one manually triggered due cycle
type BillingRunResponse struct {
	RanAt     string              `json:"ran_at"`
	Selected  int                 `json:"selected"`
	Charged   int                 `json:"charged"`
	Failed    int                 `json:"failed"`
	Suspended int                 `json:"suspended"`
	Skipped   int                 `json:"skipped"`
	Deferred  int                 `json:"deferred"`
	Errors    []ProfileErrorEntry `json:"errors,omitempty"`
}

// ProfileErrorEntry records one per-profile failure inside a billing run
type ProfileErrorEntry struct {
	ProfileID string `json:"profile_id"`
	Error     string `json:"error"`
}

// RunDueCycle triggers one billing cycle immediately. The worker runs the
// same cycle on a ticker; this endpoint exists for operations.
func (h *BillingHandler) RunDueCycle(c echo.Context) error {
	report, err := h.billingService.RunDueCycle(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return writeError(c, err)
	}

	resp := BillingRunResponse{
		RanAt:     report.RanAt.Format(time.RFC3339),
		Selected:  report.Selected,
		Charged:   report.Charged,
		Failed:    report.Failed,
		Suspended: report.Suspended,
		Skipped:   report.Skipped,
		Deferred:  report.Deferred,
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, ProfileErrorEntry{
			ProfileID: e.ProfileID.String(),
			Error:     e.Err,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

package input

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolpay/payment-gateway/internal/core"
)

// BillingService manages recurring payment profiles and runs due billing
// cycles. RunDueCycle is invoked by the worker's ticker and by the manual
// trigger endpoint.
type BillingService interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (*core.RecurringPaymentProfile, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*core.RecurringPaymentProfile, error)

	// RunDueCycle claims and charges every due profile once. One profile's
	// failure never aborts the run.
	RunDueCycle(ctx context.Context, now time.Time) (*BillingRunReport, error)

	// Reactivate re-enables a suspended profile and resets its failure
	// counter. Cancelled profiles are terminal.
	Reactivate(ctx context.Context, id uuid.UUID, actor string) (*core.RecurringPaymentProfile, error)

	// Cancel ends a profile permanently.
	Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*core.RecurringPaymentProfile, error)
}

// CreateProfileRequest creates an active recurring profile.
type CreateProfileRequest struct {
	Owner            core.Paymentable
	GatewayCode      string
	Amount           float64
	Currency         core.Currency
	Description      string
	BillingPeriod    core.BillingPeriod
	BillingFrequency int
	StartDate        time.Time
	EndDate          *time.Time
	MethodToken      string
	MaxFailures      int
	Actor            string
}

// BillingRunReport summarizes one due cycle.
type BillingRunReport struct {
	RanAt     time.Time
	Selected  int
	Charged   int
	Failed    int
	Suspended int
	Skipped   int // claimed by another run or no longer due
	Deferred  int // unknown outcome, left for reconciliation
	Errors    []ProfileError
}

// ProfileError records a per-profile failure inside a billing run.
type ProfileError struct {
	ProfileID uuid.UUID
	Err       string
}

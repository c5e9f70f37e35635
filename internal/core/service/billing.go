package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/input"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// RecurringBillingScheduler implements the BillingService input port. Each
// due profile is claimed through an expiring claim before it is charged, so
// overlapping runs of the same cycle never double-charge; the claim TTL
// releases profiles abandoned by a crashed run.
type RecurringBillingScheduler struct {
	profiles     output.ProfileRepository
	orchestrator *PaymentOrchestrator
	claims       output.ClaimStore
	publisher    output.EventPublisher
	claimTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewRecurringBillingScheduler creates a new billing scheduler.
func NewRecurringBillingScheduler(
	profiles output.ProfileRepository,
	orchestrator *PaymentOrchestrator,
	claims output.ClaimStore,
	publisher output.EventPublisher,
	claimTTL time.Duration,
	logger *zap.Logger,
) *RecurringBillingScheduler {
	return &RecurringBillingScheduler{
		profiles:     profiles,
		orchestrator: orchestrator,
		claims:       claims,
		publisher:    publisher,
		claimTTL:     claimTTL,
		logger:       logger,
		now:          time.Now,
	}
}

var _ input.BillingService = (*RecurringBillingScheduler)(nil)

// CreateProfile creates an active recurring profile.
func (s *RecurringBillingScheduler) CreateProfile(ctx context.Context, req input.CreateProfileRequest) (*core.RecurringPaymentProfile, error) {
	if req.Amount <= 0 {
		return nil, core.NewValidationError("amount", "must be greater than zero")
	}
	if req.GatewayCode == "" {
		return nil, core.NewValidationError("gateway", "gateway code is required")
	}
	if req.MethodToken == "" {
		return nil, core.NewValidationError("method_token", "a stored payment-method token is required")
	}
	switch req.BillingPeriod {
	case core.BillingPeriodDay, core.BillingPeriodWeek, core.BillingPeriodMonth, core.BillingPeriodYear:
	default:
		return nil, core.NewValidationError("billing_period", "must be day, week, month or year")
	}
	if req.BillingFrequency < 1 {
		return nil, core.NewValidationError("billing_frequency", "must be at least 1")
	}
	if req.MaxFailures < 1 {
		return nil, core.NewValidationError("max_failures", "must be at least 1")
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, core.NewValidationError("end_date", "must be after start_date")
	}

	start := req.StartDate
	if start.IsZero() {
		start = s.now()
	}
	profile := &core.RecurringPaymentProfile{
		ID:               uuid.New(),
		Owner:            req.Owner,
		GatewayCode:      req.GatewayCode,
		Amount:           core.Round2(req.Amount),
		Currency:         req.Currency,
		Description:      req.Description,
		BillingPeriod:    req.BillingPeriod,
		BillingFrequency: req.BillingFrequency,
		StartDate:        start,
		NextBillingDate:  start,
		EndDate:          req.EndDate,
		Status:           core.ProfileStatusActive,
		MethodToken:      req.MethodToken,
		MaxFailures:      req.MaxFailures,
		CreatedBy:        req.Actor,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// GetProfile retrieves a profile by ID.
func (s *RecurringBillingScheduler) GetProfile(ctx context.Context, id uuid.UUID) (*core.RecurringPaymentProfile, error) {
	return s.profiles.GetByID(ctx, id)
}

// RunDueCycle claims and charges every due profile once. One profile's
// failure is recorded in the report and never aborts the run.
func (s *RecurringBillingScheduler) RunDueCycle(ctx context.Context, now time.Time) (*input.BillingRunReport, error) {
	due, err := s.profiles.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due profiles: %w", err)
	}

	report := &input.BillingRunReport{RanAt: now, Selected: len(due)}
	for _, profile := range due {
		s.billProfile(ctx, profile.ID, now, report)
	}
	s.logger.Info("billing cycle finished",
		zap.Int("selected", report.Selected),
		zap.Int("charged", report.Charged),
		zap.Int("failed", report.Failed),
		zap.Int("suspended", report.Suspended),
		zap.Int("skipped", report.Skipped),
		zap.Int("deferred", report.Deferred))
	return report, nil
}

// billProfile charges one claimed profile and updates its counters. The
// claim is released in all paths; the TTL covers a crash mid-charge.
func (s *RecurringBillingScheduler) billProfile(ctx context.Context, id uuid.UUID, now time.Time, report *input.BillingRunReport) {
	key := claimKey(id)
	ok, err := s.claims.Acquire(ctx, key, s.claimTTL)
	if err != nil {
		report.Errors = append(report.Errors, input.ProfileError{ProfileID: id, Err: err.Error()})
		return
	}
	if !ok {
		report.Skipped++
		return
	}
	defer func() {
		if rerr := s.claims.Release(ctx, key); rerr != nil {
			s.logger.Warn("failed to release billing claim",
				zap.String("profile_id", id.String()),
				zap.Error(rerr))
		}
	}()

	// Re-read under the claim: the profile may have been charged, cancelled
	// or suspended between selection and claiming.
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		report.Errors = append(report.Errors, input.ProfileError{ProfileID: id, Err: err.Error()})
		return
	}
	if !profile.Due(now) {
		report.Skipped++
		return
	}

	result, err := s.orchestrator.ChargeProfile(ctx, profile)
	if err != nil {
		s.recordFailure(ctx, id, report, err.Error())
		return
	}

	switch {
	case result.Deferred:
		// Unknown outcome: neither success nor failure. The webhook or a
		// verify call settles the payment; the profile is retried only
		// after that resolution.
		report.Deferred++
		s.logger.Warn("recurring charge deferred, outcome unknown",
			zap.String("profile_id", id.String()),
			zap.String("payment_id", result.Payment.ID.String()))
	case result.State == core.OutcomeSucceeded:
		_, uerr := s.profiles.UpdateLocked(ctx, id, func(p *core.RecurringPaymentProfile) error {
			p.AdvanceBillingDate()
			return nil
		})
		if uerr != nil {
			report.Errors = append(report.Errors, input.ProfileError{ProfileID: id, Err: uerr.Error()})
			return
		}
		report.Charged++
	default:
		s.recordFailure(ctx, id, report, "charge failed")
	}
}

// recordFailure increments the profile's failure counter under its row lock
// and suspends it when the threshold is reached.
func (s *RecurringBillingScheduler) recordFailure(ctx context.Context, id uuid.UUID, report *input.BillingRunReport, detail string) {
	suspended := false
	profile, err := s.profiles.UpdateLocked(ctx, id, func(p *core.RecurringPaymentProfile) error {
		suspended = p.RecordFailure()
		return nil
	})
	if err != nil {
		report.Errors = append(report.Errors, input.ProfileError{ProfileID: id, Err: err.Error()})
		return
	}
	report.Failed++
	report.Errors = append(report.Errors, input.ProfileError{ProfileID: id, Err: detail})
	if suspended {
		report.Suspended++
		s.logger.Warn("profile suspended after repeated failures",
			zap.String("profile_id", id.String()),
			zap.Int("failure_count", profile.FailureCount),
			zap.Int("max_failures", profile.MaxFailures))
		s.publish(ctx, output.Event{
			Kind:       output.EventProfileSuspended,
			ProfileID:  id,
			Amount:     profile.Amount,
			Currency:   string(profile.Currency),
			Detail:     detail,
			OccurredAt: s.now(),
		})
	}
}

// Reactivate re-enables a suspended profile; cancelled profiles are terminal.
func (s *RecurringBillingScheduler) Reactivate(ctx context.Context, id uuid.UUID, actor string) (*core.RecurringPaymentProfile, error) {
	profile, err := s.profiles.UpdateLocked(ctx, id, func(p *core.RecurringPaymentProfile) error {
		return p.Reactivate()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile reactivated",
		zap.String("profile_id", id.String()),
		zap.String("actor", actor))
	return profile, nil
}

// Cancel ends a profile permanently.
func (s *RecurringBillingScheduler) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*core.RecurringPaymentProfile, error) {
	profile, err := s.profiles.UpdateLocked(ctx, id, func(p *core.RecurringPaymentProfile) error {
		return p.Cancel(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile cancelled",
		zap.String("profile_id", id.String()),
		zap.String("reason", reason),
		zap.String("actor", actor))
	return profile, nil
}

func (s *RecurringBillingScheduler) publish(ctx context.Context, evt output.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("kind", string(evt.Kind)),
			zap.Error(err))
	}
}

func claimKey(id uuid.UUID) string {
	return "billing:claim:" + id.String()
}

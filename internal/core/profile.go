package core

import (
	"time"

	"github.com/google/uuid"
)

// ProfileStatus represents the status of a recurring payment profile
type ProfileStatus string

const (
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusSuspended ProfileStatus = "suspended"
	ProfileStatusCancelled ProfileStatus = "cancelled"
)

// BillingPeriod is the unit of a profile's billing interval.
type BillingPeriod string

const (
	BillingPeriodDay   BillingPeriod = "day"
	BillingPeriodWeek  BillingPeriod = "week"
	BillingPeriodMonth BillingPeriod = "month"
	BillingPeriodYear  BillingPeriod = "year"
)

// RecurringPaymentProfile is a standing instruction to charge a stored
// payment method periodically until cancelled or suspended.
type RecurringPaymentProfile struct {
	ID          uuid.UUID
	Owner       Paymentable
	GatewayCode string
	Amount      float64
	Currency    Currency
	Description string

	BillingPeriod    BillingPeriod
	BillingFrequency int
	StartDate        time.Time
	NextBillingDate  time.Time
	EndDate          *time.Time

	Status       ProfileStatus
	MethodToken  string // stored payment-method token, opaque to the core
	FailureCount int
	MaxFailures  int

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the profile should be charged at the given instant.
func (p *RecurringPaymentProfile) Due(now time.Time) bool {
	if p.Status != ProfileStatusActive {
		return false
	}
	if p.NextBillingDate.After(now) {
		return false
	}
	return p.EndDate == nil || p.EndDate.After(now)
}

// AdvanceBillingDate moves next_billing_date forward by one billing interval
// and resets the failure counter. Called after a successful charge.
func (p *RecurringPaymentProfile) AdvanceBillingDate() {
	n := p.BillingFrequency
	if n < 1 {
		n = 1
	}
	switch p.BillingPeriod {
	case BillingPeriodDay:
		p.NextBillingDate = p.NextBillingDate.AddDate(0, 0, n)
	case BillingPeriodWeek:
		p.NextBillingDate = p.NextBillingDate.AddDate(0, 0, 7*n)
	case BillingPeriodMonth:
		p.NextBillingDate = p.NextBillingDate.AddDate(0, n, 0)
	case BillingPeriodYear:
		p.NextBillingDate = p.NextBillingDate.AddDate(n, 0, 0)
	}
	p.FailureCount = 0
}

// RecordFailure increments the failure counter and suspends the profile once
// the threshold is reached. next_billing_date is left untouched so the same
// cycle retries on the next run while the profile remains active.
// Returns true when the profile was suspended by this failure.
func (p *RecurringPaymentProfile) RecordFailure() bool {
	p.FailureCount++
	if p.FailureCount >= p.MaxFailures {
		p.Status = ProfileStatusSuspended
		return true
	}
	return false
}

// Reactivate is valid only from suspended; a cancelled profile is terminal.
func (p *RecurringPaymentProfile) Reactivate() error {
	if p.Status != ProfileStatusSuspended {
		return NewValidationError("status", "profile is %s, only suspended profiles can be reactivated", p.Status)
	}
	p.Status = ProfileStatusActive
	p.FailureCount = 0
	return nil
}

// Cancel ends the profile permanently.
func (p *RecurringPaymentProfile) Cancel(now time.Time) error {
	if p.Status == ProfileStatusCancelled {
		return NewValidationError("status", "profile is already cancelled")
	}
	p.Status = ProfileStatusCancelled
	t := now
	p.EndDate = &t
	return nil
}

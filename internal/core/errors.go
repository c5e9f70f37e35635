package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a payment, refund or profile does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError is a caller fault: bad amount, unsupported currency,
// inactive gateway, refund exceeding the refundable remainder. Never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
	}
	return "validation: " + e.Msg
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// GatewayUnavailableError means the provider rejected or errored on an
// outbound call. The payment stays pending so it can be retried or inspected.
type GatewayUnavailableError struct {
	Gateway string
	Err     error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("gateway %s unavailable: %v", e.Gateway, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

// GatewayTimeoutError means the outbound call exceeded its deadline. The
// outcome is unknown: no state is changed and reconciliation is deferred to
// the next webhook or verify call, never guessed.
type GatewayTimeoutError struct {
	Gateway string
	Op      string
}

func (e *GatewayTimeoutError) Error() string {
	return fmt.Sprintf("gateway %s: %s timed out, outcome unknown", e.Gateway, e.Op)
}

// ReconciliationConflictError means a gateway reported an outcome that
// contradicts a terminal state we already hold. The existing state is never
// overwritten; the conflict is logged and held for manual review.
type ReconciliationConflictError struct {
	PaymentID uuid.UUID
	Current   PaymentStatus
	Reported  OutcomeState
}

func (e *ReconciliationConflictError) Error() string {
	return fmt.Sprintf("payment %s: gateway reported %q but status is already %q", e.PaymentID, e.Reported, e.Current)
}

// InvariantViolation means the money fields failed to balance after a
// transition. It indicates a logic defect and is treated as fatal: the
// payment is held in needs_review, never surfaced as a business error.
type InvariantViolation struct {
	PaymentID uuid.UUID
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("ledger invariant violated for payment %s: %s", e.PaymentID, e.Detail)
}

package output

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a domain event published on the payments exchange.
type EventKind string

const (
	EventPaymentCompleted EventKind = "payment.completed"
	EventPaymentFailed    EventKind = "payment.failed"
	EventRefundCompleted  EventKind = "refund.completed"
	EventRefundFailed     EventKind = "refund.failed"
	EventProfileSuspended EventKind = "profile.suspended"
	EventPaymentReview    EventKind = "payment.needs_review"
)

// Event is a domain event handed to the messaging adapter. The worker feeds
// consumed events into the notification collaborator.
type Event struct {
	Kind          EventKind `json:"kind"`
	PaymentID     uuid.UUID `json:"payment_id,omitempty"`
	RefundID      uuid.UUID `json:"refund_id,omitempty"`
	ProfileID     uuid.UUID `json:"profile_id,omitempty"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher is an output port (secondary port) for publishing domain
// events. Secondary adapters (RabbitMQ implementations) will implement this.
type EventPublisher interface {
	// PublishEvent publishes a domain event; failures must not abort the
	// transition that produced the event.
	PublishEvent(ctx context.Context, evt Event) error
	// Close closes the messaging connection
	Close() error
}

// Notifier is the boundary of the out-of-scope notification subsystem: a
// "send notification" capability consumed by the worker.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

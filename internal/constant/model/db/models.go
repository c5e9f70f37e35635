package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment represents a payment ledger entry in the database. Rows are never
// deleted, only superseded by new status values.
type Payment struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceNumber string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"invoice_number"`

	PaymentableKind string `gorm:"type:varchar(64);not null;index:idx_paymentable" json:"paymentable_kind"`
	PaymentableID   string `gorm:"type:varchar(64);not null;index:idx_paymentable" json:"paymentable_id"`

	Amount         float64 `gorm:"type:decimal(15,2);not null" json:"amount"`
	DiscountAmount float64 `gorm:"type:decimal(15,2);not null;default:0" json:"discount_amount"`
	FineAmount     float64 `gorm:"type:decimal(15,2);not null;default:0" json:"fine_amount"`
	TaxAmount      float64 `gorm:"type:decimal(15,2);not null;default:0" json:"tax_amount"`
	FeeAmount      float64 `gorm:"type:decimal(15,2);not null;default:0" json:"fee_amount"`
	TotalAmount    float64 `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	PaidAmount     float64 `gorm:"type:decimal(15,2);not null;default:0" json:"paid_amount"`
	DueAmount      float64 `gorm:"type:decimal(15,2);not null" json:"due_amount"`

	Currency        string     `gorm:"type:varchar(3);not null" json:"currency"`
	Method          string     `gorm:"type:varchar(32);not null;index" json:"payment_method"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentDate     *time.Time `json:"payment_date"`
	ReferenceNumber string     `gorm:"type:varchar(255)" json:"reference_number"`
	TransactionID   string     `gorm:"type:varchar(255);index" json:"transaction_id"`
	Description     string     `gorm:"type:text" json:"description"`
	Details         []byte     `gorm:"type:jsonb" json:"payment_details"`

	SuccessURL string `gorm:"type:text" json:"success_url"`
	CancelURL  string `gorm:"type:text" json:"cancel_url"`

	NeedsReview  bool   `gorm:"not null;default:false;index" json:"needs_review"`
	ReviewReason string `gorm:"type:text" json:"review_reason"`

	CreatedBy string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a record
func (p *Payment) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// Refund represents a refund row. Completed refunds are immutable history.
type Refund struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index" json:"payment_id"`

	Amount   float64 `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency string  `gorm:"type:varchar(3);not null" json:"currency"`
	Reason   string  `gorm:"type:text" json:"reason"`
	Status   string  `gorm:"type:varchar(20);not null;index" json:"status"`
	Manual   bool    `gorm:"not null;default:false" json:"manual"`

	TransactionID string `gorm:"type:varchar(255)" json:"transaction_id"`
	FailureReason string `gorm:"type:text" json:"failure_reason"`

	ProcessedBy string     `gorm:"type:varchar(64)" json:"processed_by"`
	ProcessedAt *time.Time `json:"processed_at"`
	Metadata    []byte     `gorm:"type:jsonb" json:"metadata"`

	CreatedBy string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Refund) TableName() string {
	return "refunds"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a record
func (r *Refund) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = time.Now()
	return nil
}

// GatewayConfig is the static configuration row for one payment provider.
type GatewayConfig struct {
	Code     string `gorm:"type:varchar(32);primary_key" json:"code"`
	Type     string `gorm:"type:varchar(32)" json:"type"`
	Name     string `gorm:"type:varchar(128)" json:"name"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
	IsOnline bool   `gorm:"not null;default:false" json:"is_online"`

	Credentials []byte `gorm:"type:jsonb" json:"-"`

	FeePercentage float64 `gorm:"type:decimal(8,4);not null;default:0" json:"fee_percentage"`
	FeeFixed      float64 `gorm:"type:decimal(15,2);not null;default:0" json:"fee_fixed"`
	MinAmount     float64 `gorm:"type:decimal(15,2);not null;default:0" json:"min_amount"`
	MaxAmount     float64 `gorm:"type:decimal(15,2);not null;default:0" json:"max_amount"`

	SupportedCurrencies string `gorm:"type:varchar(255)" json:"supported_currencies"` // comma-separated

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GatewayConfig) TableName() string {
	return "payment_gateways"
}

// RecurringProfile is a standing instruction to charge periodically.
type RecurringProfile struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OwnerKind string    `gorm:"type:varchar(64);not null" json:"owner_kind"`
	OwnerID   string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`

	GatewayCode string  `gorm:"type:varchar(32);not null" json:"gateway_code"`
	Amount      float64 `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency    string  `gorm:"type:varchar(3);not null" json:"currency"`
	Description string  `gorm:"type:text" json:"description"`

	BillingPeriod    string     `gorm:"type:varchar(8);not null" json:"billing_period"`
	BillingFrequency int        `gorm:"not null;default:1" json:"billing_frequency"`
	StartDate        time.Time  `gorm:"not null" json:"start_date"`
	NextBillingDate  time.Time  `gorm:"not null;index" json:"next_billing_date"`
	EndDate          *time.Time `json:"end_date"`

	Status       string `gorm:"type:varchar(16);not null;index" json:"status"`
	MethodToken  string `gorm:"type:varchar(255);not null" json:"-"`
	FailureCount int    `gorm:"not null;default:0" json:"failure_count"`
	MaxFailures  int    `gorm:"not null;default:3" json:"max_failures"`

	CreatedBy string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RecurringProfile) TableName() string {
	return "recurring_payment_profiles"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *RecurringProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a record
func (p *RecurringProfile) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// InvoiceCounter holds the per-day invoice sequence. The row is locked while
// a payment is created so numbering stays monotonic and gap-free.
type InvoiceCounter struct {
	Day string `gorm:"type:varchar(8);primary_key" json:"day"` // 20060102
	Seq int    `gorm:"not null;default:0" json:"seq"`
}

// TableName specifies the table name for GORM
func (InvoiceCounter) TableName() string {
	return "invoice_counters"
}

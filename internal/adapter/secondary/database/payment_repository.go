package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// GormPaymentRepository is a secondary adapter that implements the
// PaymentRepository output port.
type GormPaymentRepository struct {
	gormDB *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment repository
func NewGormPaymentRepository(gormDB *gorm.DB) output.PaymentRepository {
	return &GormPaymentRepository{gormDB: gormDB}
}

// Create persists a new payment, assigning its invoice number from the
// per-day counter row locked inside the same transaction.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *core.Payment) error {
	return r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day := time.Now().Format("20060102")

		var counter db.InvoiceCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("day = ?", day).
			First(&counter).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			counter = db.InvoiceCounter{Day: day, Seq: 0}
			if cerr := tx.Create(&counter).Error; cerr != nil {
				return fmt.Errorf("failed to create invoice counter: %w", cerr)
			}
			// Re-lock the fresh row so concurrent creators serialize on it.
			if lerr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("day = ?", day).
				First(&counter).Error; lerr != nil {
				return fmt.Errorf("failed to lock invoice counter: %w", lerr)
			}
		case err != nil:
			return fmt.Errorf("failed to lock invoice counter: %w", err)
		}

		counter.Seq++
		if err := tx.Save(&counter).Error; err != nil {
			return fmt.Errorf("failed to advance invoice counter: %w", err)
		}
		payment.InvoiceNumber = core.InvoiceNumber(time.Now(), counter.Seq)

		dbPayment := paymentFromCore(payment)
		if err := tx.Create(dbPayment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		payment.CreatedAt = dbPayment.CreatedAt
		payment.UpdatedAt = dbPayment.UpdatedAt
		return nil
	})
}

// GetByID retrieves a payment by its ID.
func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.Payment, error) {
	var dbPayment db.Payment
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&dbPayment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return paymentToCore(&dbPayment), nil
}

// GetByInvoiceNumber retrieves a payment by its invoice number.
func (r *GormPaymentRepository) GetByInvoiceNumber(ctx context.Context, invoice string) (*core.Payment, error) {
	var dbPayment db.Payment
	if err := r.gormDB.WithContext(ctx).Where("invoice_number = ?", invoice).First(&dbPayment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %s: %w", invoice, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return paymentToCore(&dbPayment), nil
}

// GetByTransactionID retrieves a payment by its gateway transaction id.
func (r *GormPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*core.Payment, error) {
	var dbPayment db.Payment
	if err := r.gormDB.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&dbPayment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", transactionID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return paymentToCore(&dbPayment), nil
}

// UpdateLocked loads the payment under SELECT FOR UPDATE, runs fn and
// persists the result. fn returning an error rolls the transaction back.
func (r *GormPaymentRepository) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.Payment) error) (*core.Payment, error) {
	var result *core.Payment
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbPayment db.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&dbPayment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		payment := paymentToCore(&dbPayment)
		if err := fn(payment); err != nil {
			return err
		}

		updated := paymentFromCore(payment)
		updated.CreatedAt = dbPayment.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		result = paymentToCore(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// GormRefundRepository is a secondary adapter that implements the
// RefundRepository output port. Lock order is always payment before refund
// so creation and settlement cannot deadlock each other.
type GormRefundRepository struct {
	gormDB *gorm.DB
}

// NewGormRefundRepository creates a new GORM refund repository
func NewGormRefundRepository(gormDB *gorm.DB) output.RefundRepository {
	return &GormRefundRepository{gormDB: gormDB}
}

// CreateForPayment locks the payment row, sums the in-flight refunds and
// inserts the refund built by the callback, all in one transaction.
func (r *GormRefundRepository) CreateForPayment(ctx context.Context, paymentID uuid.UUID, build func(p *core.Payment, reservedTotal float64) (*core.Refund, error)) (*core.Refund, error) {
	var result *core.Refund
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbPayment db.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", paymentID).
			First(&dbPayment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %s: %w", paymentID, core.ErrNotFound)
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		var reserved float64
		if err := tx.Model(&db.Refund{}).
			Where("payment_id = ? AND status IN ?", paymentID,
				[]string{string(core.RefundStatusPending), string(core.RefundStatusProcessing)}).
			Select("coalesce(sum(amount), 0)").
			Scan(&reserved).Error; err != nil {
			return fmt.Errorf("failed to sum in-flight refunds: %w", err)
		}

		refund, err := build(paymentToCore(&dbPayment), reserved)
		if err != nil {
			return err
		}

		dbRefund := refundFromCore(refund)
		if err := tx.Create(dbRefund).Error; err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}
		result = refundToCore(dbRefund)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a refund by its ID.
func (r *GormRefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.Refund, error) {
	var dbRefund db.Refund
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&dbRefund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("refund %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return refundToCore(&dbRefund), nil
}

// ListByPayment lists all refunds against a payment, oldest first.
func (r *GormRefundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*core.Refund, error) {
	var dbRefunds []db.Refund
	if err := r.gormDB.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at asc").
		Find(&dbRefunds).Error; err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	refunds := make([]*core.Refund, 0, len(dbRefunds))
	for i := range dbRefunds {
		refunds = append(refunds, refundToCore(&dbRefunds[i]))
	}
	return refunds, nil
}

// UpdateLocked mutates a refund under its row lock.
func (r *GormRefundRepository) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(rf *core.Refund) error) (*core.Refund, error) {
	var result *core.Refund
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbRefund db.Refund
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&dbRefund).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("refund %s: %w", id, core.ErrNotFound)
			}
			return fmt.Errorf("failed to lock refund: %w", err)
		}

		refund := refundToCore(&dbRefund)
		if err := fn(refund); err != nil {
			return err
		}

		updated := refundFromCore(refund)
		updated.CreatedAt = dbRefund.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to update refund: %w", err)
		}
		result = refundToCore(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Settle locks the owning payment and then the refund, runs fn with both
// and persists both in one transaction.
func (r *GormRefundRepository) Settle(ctx context.Context, refundID uuid.UUID, fn func(rf *core.Refund, p *core.Payment) error) (*core.Refund, *core.Payment, error) {
	var (
		resultRefund  *core.Refund
		resultPayment *core.Payment
	)
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbRefund db.Refund
		if err := tx.Where("id = ?", refundID).First(&dbRefund).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("refund %s: %w", refundID, core.ErrNotFound)
			}
			return fmt.Errorf("failed to get refund: %w", err)
		}

		var dbPayment db.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", dbRefund.PaymentID).
			First(&dbPayment).Error; err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		// Re-read the refund under the payment lock.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", refundID).
			First(&dbRefund).Error; err != nil {
			return fmt.Errorf("failed to lock refund: %w", err)
		}

		refund := refundToCore(&dbRefund)
		payment := paymentToCore(&dbPayment)
		if err := fn(refund, payment); err != nil {
			return err
		}

		updatedRefund := refundFromCore(refund)
		updatedRefund.CreatedAt = dbRefund.CreatedAt
		if err := tx.Save(updatedRefund).Error; err != nil {
			return fmt.Errorf("failed to update refund: %w", err)
		}
		updatedPayment := paymentFromCore(payment)
		updatedPayment.CreatedAt = dbPayment.CreatedAt
		if err := tx.Save(updatedPayment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		resultRefund = refundToCore(updatedRefund)
		resultPayment = paymentToCore(updatedPayment)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resultRefund, resultPayment, nil
}

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

// GormProfileRepository is a secondary adapter that implements the
// ProfileRepository output port.
type GormProfileRepository struct {
	gormDB *gorm.DB
}

// NewGormProfileRepository creates a new GORM profile repository
func NewGormProfileRepository(gormDB *gorm.DB) output.ProfileRepository {
	return &GormProfileRepository{gormDB: gormDB}
}

// Create persists a new recurring profile.
func (r *GormProfileRepository) Create(ctx context.Context, profile *core.RecurringPaymentProfile) error {
	dbProfile := profileFromCore(profile)
	if err := r.gormDB.WithContext(ctx).Create(dbProfile).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	profile.CreatedAt = dbProfile.CreatedAt
	profile.UpdatedAt = dbProfile.UpdatedAt
	return nil
}

// GetByID retrieves a profile by its ID.
func (r *GormProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.RecurringPaymentProfile, error) {
	var dbProfile db.RecurringProfile
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&dbProfile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profileToCore(&dbProfile), nil
}

// ListDue returns active profiles whose next_billing_date has passed and
// whose end_date has not.
func (r *GormProfileRepository) ListDue(ctx context.Context, now time.Time) ([]*core.RecurringPaymentProfile, error) {
	var dbProfiles []db.RecurringProfile
	if err := r.gormDB.WithContext(ctx).
		Where("status = ?", string(core.ProfileStatusActive)).
		Where("next_billing_date <= ?", now).
		Where("end_date IS NULL OR end_date > ?", now).
		Order("next_billing_date asc").
		Find(&dbProfiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list due profiles: %w", err)
	}
	profiles := make([]*core.RecurringPaymentProfile, 0, len(dbProfiles))
	for i := range dbProfiles {
		profiles = append(profiles, profileToCore(&dbProfiles[i]))
	}
	return profiles, nil
}

// UpdateLocked mutates a profile under its row lock.
func (r *GormProfileRepository) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.RecurringPaymentProfile) error) (*core.RecurringPaymentProfile, error) {
	var result *core.RecurringPaymentProfile
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbProfile db.RecurringProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&dbProfile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
			}
			return fmt.Errorf("failed to lock profile: %w", err)
		}

		profile := profileToCore(&dbProfile)
		if err := fn(profile); err != nil {
			return err
		}

		updated := profileFromCore(profile)
		updated.CreatedAt = dbProfile.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		result = profileToCore(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

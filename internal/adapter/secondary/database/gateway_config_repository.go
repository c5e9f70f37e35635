package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// GormGatewayConfigRepository is a secondary adapter that implements the
// GatewayConfigRepository output port. Gateway rows are configuration, read
// only at transaction time.
type GormGatewayConfigRepository struct {
	gormDB *gorm.DB
}

// NewGormGatewayConfigRepository creates a new GORM gateway config repository
func NewGormGatewayConfigRepository(gormDB *gorm.DB) *GormGatewayConfigRepository {
	return &GormGatewayConfigRepository{gormDB: gormDB}
}

var _ output.GatewayConfigRepository = (*GormGatewayConfigRepository)(nil)

// GetByCode retrieves a gateway config by its code.
func (r *GormGatewayConfigRepository) GetByCode(ctx context.Context, code string) (*core.PaymentGatewayConfig, error) {
	var dbGateway db.GatewayConfig
	if err := r.gormDB.WithContext(ctx).Where("code = ?", code).First(&dbGateway).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gateway %s: %w", code, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}
	return gatewayToCore(&dbGateway), nil
}

// ListActive lists active gateway configs.
func (r *GormGatewayConfigRepository) ListActive(ctx context.Context) ([]*core.PaymentGatewayConfig, error) {
	var dbGateways []db.GatewayConfig
	if err := r.gormDB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code asc").
		Find(&dbGateways).Error; err != nil {
		return nil, fmt.Errorf("failed to list gateways: %w", err)
	}
	gateways := make([]*core.PaymentGatewayConfig, 0, len(dbGateways))
	for i := range dbGateways {
		gateways = append(gateways, gatewayToCore(&dbGateways[i]))
	}
	return gateways, nil
}

// Seed inserts a gateway config if no row with its code exists yet. Used at
// startup to provision the built-in cash and sandbox gateways.
func (r *GormGatewayConfigRepository) Seed(ctx context.Context, cfg *core.PaymentGatewayConfig) error {
	dbGateway := gatewayFromCore(cfg)
	if err := r.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dbGateway).Error; err != nil {
		return fmt.Errorf("failed to seed gateway %s: %w", cfg.Code, err)
	}
	return nil
}

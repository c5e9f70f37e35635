package service

import (
	"github.com/schoolpay/payment-gateway/internal/core"
)

// CalculateFee computes the gateway fee for a base amount after validating
// the gateway's amount and currency constraints. Pure: it reads only the
// config it is given.
//
//	fee = fee_fixed + amount * fee_percentage / 100
func CalculateFee(cfg *core.PaymentGatewayConfig, amount float64, currency core.Currency) (float64, error) {
	if amount <= 0 {
		return 0, core.NewValidationError("amount", "must be greater than zero")
	}
	if cfg.MinAmount > 0 && amount < cfg.MinAmount {
		return 0, core.NewValidationError("amount", "%.2f is below gateway minimum %.2f", amount, cfg.MinAmount)
	}
	if cfg.MaxAmount > 0 && amount > cfg.MaxAmount {
		return 0, core.NewValidationError("amount", "%.2f is above gateway maximum %.2f", amount, cfg.MaxAmount)
	}
	if !cfg.SupportsCurrency(currency) {
		return 0, core.NewValidationError("currency", "%s is not supported by gateway %s", currency, cfg.Code)
	}
	return core.Round2(cfg.FeeFixed + amount*cfg.FeePercentage/100), nil
}

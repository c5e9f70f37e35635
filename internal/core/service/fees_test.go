package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpay/payment-gateway/internal/core"
)

func TestCalculateFee(t *testing.T) {
	cfg := sandboxConfig() // 2.9% + 6.00 fixed

	fee, err := CalculateFee(cfg, 1000, "USD")
	require.NoError(t, err)
	assert.Equal(t, 35.0, fee)

	fee, err = CalculateFee(cfg, 1, "USD")
	require.NoError(t, err)
	assert.Equal(t, 6.03, fee)
}

func TestCalculateFeeZeroSchedule(t *testing.T) {
	fee, err := CalculateFee(cashConfig(), 250, "USD")
	require.NoError(t, err)
	assert.Equal(t, 0.0, fee)
}

func TestCalculateFeeRejectsNonPositiveAmount(t *testing.T) {
	var verr *core.ValidationError

	_, err := CalculateFee(sandboxConfig(), 0, "USD")
	assert.ErrorAs(t, err, &verr)

	_, err = CalculateFee(sandboxConfig(), -5, "USD")
	assert.ErrorAs(t, err, &verr)
}

func TestCalculateFeeAmountBounds(t *testing.T) {
	cfg := sandboxConfig()
	cfg.MinAmount = 10
	cfg.MaxAmount = 5000

	var verr *core.ValidationError
	_, err := CalculateFee(cfg, 9.99, "USD")
	assert.ErrorAs(t, err, &verr)

	_, err = CalculateFee(cfg, 5000.01, "USD")
	assert.ErrorAs(t, err, &verr)

	_, err = CalculateFee(cfg, 10, "USD")
	assert.NoError(t, err)
	_, err = CalculateFee(cfg, 5000, "USD")
	assert.NoError(t, err)
}

func TestCalculateFeeCurrencySupport(t *testing.T) {
	cfg := sandboxConfig()
	cfg.SupportedCurrencies = []core.Currency{"USD", "ETB"}

	_, err := CalculateFee(cfg, 100, "ETB")
	assert.NoError(t, err)

	var verr *core.ValidationError
	_, err = CalculateFee(cfg, 100, "EUR")
	assert.ErrorAs(t, err, &verr)

	// An empty list means the gateway accepts any currency.
	cfg.SupportedCurrencies = nil
	_, err = CalculateFee(cfg, 100, "EUR")
	assert.NoError(t, err)
}

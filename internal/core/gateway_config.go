package core

// PaymentGatewayConfig is static provider configuration. It is read-only at
// transaction time; it feeds fee calculation and availability checks.
type PaymentGatewayConfig struct {
	Code     string // unique gateway code, e.g. "cash", "sandbox"
	Type     string
	Name     string
	IsActive bool
	IsOnline bool

	// Credentials are opaque to the core; online gateways must have them.
	Credentials map[string]string

	FeePercentage float64
	FeeFixed      float64
	MinAmount     float64
	MaxAmount     float64 // 0 means no upper bound

	SupportedCurrencies []Currency
}

// SupportsCurrency reports whether the gateway accepts the given currency.
// An empty list means the gateway accepts any currency.
func (g *PaymentGatewayConfig) SupportsCurrency(c Currency) bool {
	if len(g.SupportedCurrencies) == 0 {
		return true
	}
	for _, s := range g.SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// Configured reports whether an online gateway has the credentials it needs.
// Offline gateways need none.
func (g *PaymentGatewayConfig) Configured() bool {
	if !g.IsOnline {
		return true
	}
	return len(g.Credentials) > 0
}

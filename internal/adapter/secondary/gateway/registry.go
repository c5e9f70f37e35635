package gateway

import (
	"fmt"
	"sync"

	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// Registry resolves gateway adapters by code. Concrete provider adapters
// register themselves at wiring time; the core only sees the port.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]output.GatewayAdapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]output.GatewayAdapter)}
}

var _ output.GatewayRegistry = (*Registry)(nil)

// Register adds an adapter under its code, replacing any previous one.
func (r *Registry) Register(adapter output.GatewayAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Code()] = adapter
}

// Adapter resolves an adapter by gateway code.
func (r *Registry) Adapter(code string) (output.GatewayAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for gateway %s", code)
	}
	return adapter, nil
}

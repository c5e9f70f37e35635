package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// memStore is a shared in-memory backing store. Its single mutex is held for
// the duration of every UpdateLocked/CreateForPayment/Settle callback, which
// reproduces the row-lock serialization the real repositories get from
// SELECT FOR UPDATE.
type memStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*core.Payment
	refunds  map[uuid.UUID]*core.Refund
	order    []uuid.UUID // refund insertion order
	profiles map[uuid.UUID]*core.RecurringPaymentProfile
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		payments: make(map[uuid.UUID]*core.Payment),
		refunds:  make(map[uuid.UUID]*core.Refund),
		profiles: make(map[uuid.UUID]*core.RecurringPaymentProfile),
	}
}

func clonePayment(p *core.Payment) *core.Payment {
	c := *p
	c.Details = append([]core.DetailSnapshot(nil), p.Details...)
	return &c
}

func cloneRefund(r *core.Refund) *core.Refund {
	c := *r
	return &c
}

func cloneProfile(p *core.RecurringPaymentProfile) *core.RecurringPaymentProfile {
	c := *p
	return &c
}

// memPayments implements output.PaymentRepository.
type memPayments struct{ s *memStore }

func (m *memPayments) Create(ctx context.Context, payment *core.Payment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.seq++
	p := clonePayment(payment)
	p.InvoiceNumber = core.InvoiceNumber(time.Now(), m.s.seq)
	p.CreatedAt = time.Now()
	m.s.payments[p.ID] = p
	*payment = *clonePayment(p)
	return nil
}

func (m *memPayments) GetByID(ctx context.Context, id uuid.UUID) (*core.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	return clonePayment(p), nil
}

func (m *memPayments) GetByInvoiceNumber(ctx context.Context, invoice string) (*core.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.payments {
		if p.InvoiceNumber == invoice {
			return clonePayment(p), nil
		}
	}
	return nil, fmt.Errorf("invoice %s: %w", invoice, core.ErrNotFound)
}

func (m *memPayments) GetByTransactionID(ctx context.Context, transactionID string) (*core.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.payments {
		if p.TransactionID == transactionID {
			return clonePayment(p), nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", transactionID, core.ErrNotFound)
}

func (m *memPayments) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.Payment) error) (*core.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, core.ErrNotFound)
	}
	p := clonePayment(stored)
	if err := fn(p); err != nil {
		return nil, err
	}
	m.s.payments[id] = p
	return clonePayment(p), nil
}

// memRefunds implements output.RefundRepository.
type memRefunds struct{ s *memStore }

func (m *memRefunds) CreateForPayment(ctx context.Context, paymentID uuid.UUID, build func(p *core.Payment, reservedTotal float64) (*core.Refund, error)) (*core.Refund, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, core.ErrNotFound)
	}
	reserved := 0.0
	for _, r := range m.s.refunds {
		if r.PaymentID == paymentID && (r.Status == core.RefundStatusPending || r.Status == core.RefundStatusProcessing) {
			reserved += r.Amount
		}
	}
	refund, err := build(clonePayment(stored), core.Round2(reserved))
	if err != nil {
		return nil, err
	}
	stored2 := cloneRefund(refund)
	stored2.CreatedAt = time.Now()
	m.s.refunds[stored2.ID] = stored2
	m.s.order = append(m.s.order, stored2.ID)
	return cloneRefund(stored2), nil
}

func (m *memRefunds) GetByID(ctx context.Context, id uuid.UUID) (*core.Refund, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.refunds[id]
	if !ok {
		return nil, fmt.Errorf("refund %s: %w", id, core.ErrNotFound)
	}
	return cloneRefund(r), nil
}

func (m *memRefunds) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*core.Refund, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*core.Refund
	for _, id := range m.s.order {
		if r := m.s.refunds[id]; r.PaymentID == paymentID {
			out = append(out, cloneRefund(r))
		}
	}
	return out, nil
}

func (m *memRefunds) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(r *core.Refund) error) (*core.Refund, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.refunds[id]
	if !ok {
		return nil, fmt.Errorf("refund %s: %w", id, core.ErrNotFound)
	}
	r := cloneRefund(stored)
	if err := fn(r); err != nil {
		return nil, err
	}
	m.s.refunds[id] = r
	return cloneRefund(r), nil
}

func (m *memRefunds) Settle(ctx context.Context, refundID uuid.UUID, fn func(r *core.Refund, p *core.Payment) error) (*core.Refund, *core.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	storedR, ok := m.s.refunds[refundID]
	if !ok {
		return nil, nil, fmt.Errorf("refund %s: %w", refundID, core.ErrNotFound)
	}
	storedP, ok := m.s.payments[storedR.PaymentID]
	if !ok {
		return nil, nil, fmt.Errorf("payment %s: %w", storedR.PaymentID, core.ErrNotFound)
	}
	r, p := cloneRefund(storedR), clonePayment(storedP)
	if err := fn(r, p); err != nil {
		return nil, nil, err
	}
	m.s.refunds[refundID] = r
	m.s.payments[p.ID] = p
	return cloneRefund(r), clonePayment(p), nil
}

// memProfiles implements output.ProfileRepository.
type memProfiles struct{ s *memStore }

func (m *memProfiles) Create(ctx context.Context, profile *core.RecurringPaymentProfile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p := cloneProfile(profile)
	p.CreatedAt = time.Now()
	m.s.profiles[p.ID] = p
	return nil
}

func (m *memProfiles) GetByID(ctx context.Context, id uuid.UUID) (*core.RecurringPaymentProfile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (m *memProfiles) ListDue(ctx context.Context, now time.Time) ([]*core.RecurringPaymentProfile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*core.RecurringPaymentProfile
	for _, p := range m.s.profiles {
		if p.Due(now) {
			out = append(out, cloneProfile(p))
		}
	}
	return out, nil
}

func (m *memProfiles) UpdateLocked(ctx context.Context, id uuid.UUID, fn func(p *core.RecurringPaymentProfile) error) (*core.RecurringPaymentProfile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	p := cloneProfile(stored)
	if err := fn(p); err != nil {
		return nil, err
	}
	m.s.profiles[id] = p
	return cloneProfile(p), nil
}

// memGateways implements output.GatewayConfigRepository.
type memGateways struct {
	configs map[string]*core.PaymentGatewayConfig
}

func (m *memGateways) GetByCode(ctx context.Context, code string) (*core.PaymentGatewayConfig, error) {
	cfg, ok := m.configs[code]
	if !ok {
		return nil, fmt.Errorf("gateway %s: %w", code, core.ErrNotFound)
	}
	return cfg, nil
}

func (m *memGateways) ListActive(ctx context.Context) ([]*core.PaymentGatewayConfig, error) {
	var out []*core.PaymentGatewayConfig
	for _, cfg := range m.configs {
		if cfg.IsActive {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// stubAdapter is a scriptable gateway adapter.
type stubAdapter struct {
	code          string
	initializeFn  func(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error)
	verifyFn      func(ctx context.Context, p *core.Payment) (*core.Outcome, error)
	refundFn      func(ctx context.Context, p *core.Payment, amount float64) (string, error)
	parseFn       func(body []byte, params map[string]string) (*output.Notification, error)
	refundCalls   int
	initCalls     int
	verifyCalls   int
	mu            sync.Mutex
}

func (a *stubAdapter) Code() string { return a.code }

func (a *stubAdapter) Initialize(ctx context.Context, p *core.Payment, opts output.InitializeOptions) (*output.InitializeResult, error) {
	a.mu.Lock()
	a.initCalls++
	a.mu.Unlock()
	if a.initializeFn == nil {
		return nil, errors.New("stub: initialize not scripted")
	}
	return a.initializeFn(ctx, p, opts)
}

func (a *stubAdapter) Verify(ctx context.Context, p *core.Payment) (*core.Outcome, error) {
	a.mu.Lock()
	a.verifyCalls++
	a.mu.Unlock()
	if a.verifyFn == nil {
		return nil, errors.New("stub: verify not scripted")
	}
	return a.verifyFn(ctx, p)
}

func (a *stubAdapter) Refund(ctx context.Context, p *core.Payment, amount float64) (string, error) {
	a.mu.Lock()
	a.refundCalls++
	a.mu.Unlock()
	if a.refundFn == nil {
		return "", errors.New("stub: refund not scripted")
	}
	return a.refundFn(ctx, p, amount)
}

func (a *stubAdapter) ParseNotification(body []byte, params map[string]string) (*output.Notification, error) {
	if a.parseFn == nil {
		return nil, errors.New("stub: parse not scripted")
	}
	return a.parseFn(body, params)
}

// stubRegistry implements output.GatewayRegistry.
type stubRegistry struct {
	adapters map[string]output.GatewayAdapter
}

func (r *stubRegistry) Adapter(code string) (output.GatewayAdapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for gateway %s", code)
	}
	return a, nil
}

// memPublisher implements output.EventPublisher and records everything.
type memPublisher struct {
	mu     sync.Mutex
	events []output.Event
}

func (p *memPublisher) PublishEvent(ctx context.Context, evt output.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) kinds() []output.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]output.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// memClaims implements output.ClaimStore.
type memClaims struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemClaims() *memClaims {
	return &memClaims{held: make(map[string]bool)}
}

func (c *memClaims) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memClaims) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, key)
	return nil
}

// testEnv wires the services against the in-memory fakes.
type testEnv struct {
	store        *memStore
	payments     *memPayments
	refunds      *memRefunds
	profiles     *memProfiles
	gateways     *memGateways
	registry     *stubRegistry
	publisher    *memPublisher
	claims       *memClaims
	orchestrator *PaymentOrchestrator
	callbacks    *CallbackProcessor
	refundEngine *RefundEngine
	billing      *RecurringBillingScheduler
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:     store,
		payments:  &memPayments{s: store},
		refunds:   &memRefunds{s: store},
		profiles:  &memProfiles{s: store},
		gateways:  &memGateways{configs: map[string]*core.PaymentGatewayConfig{}},
		registry:  &stubRegistry{adapters: map[string]output.GatewayAdapter{}},
		publisher: &memPublisher{},
		claims:    newMemClaims(),
	}
	logger := zap.NewNop()
	env.orchestrator = NewPaymentOrchestrator(
		env.payments, env.gateways, env.registry, env.publisher, time.Second, logger,
	)
	env.callbacks = NewCallbackProcessor(env.orchestrator, env.payments, env.registry, logger)
	env.refundEngine = NewRefundEngine(
		env.refunds, env.payments, env.gateways, env.registry, env.publisher, time.Second, logger,
	)
	env.billing = NewRecurringBillingScheduler(
		env.profiles, env.orchestrator, env.claims, env.publisher, time.Minute, logger,
	)
	return env
}

func (e *testEnv) addGateway(cfg *core.PaymentGatewayConfig) {
	e.gateways.configs[cfg.Code] = cfg
}

func (e *testEnv) addAdapter(a output.GatewayAdapter) {
	e.registry.adapters[a.Code()] = a
}

func sandboxConfig() *core.PaymentGatewayConfig {
	return &core.PaymentGatewayConfig{
		Code:          "sandbox",
		Type:          "card",
		Name:          "Sandbox",
		IsActive:      true,
		IsOnline:      true,
		Credentials:   map[string]string{"api_key": "k"},
		FeePercentage: 2.9,
		FeeFixed:      6,
		MinAmount:     1,
	}
}

func cashConfig() *core.PaymentGatewayConfig {
	return &core.PaymentGatewayConfig{
		Code:     "cash",
		Type:     "offline",
		Name:     "Cash",
		IsActive: true,
	}
}

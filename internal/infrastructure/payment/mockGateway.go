package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockGateway is an in-memory gateway for local runs and tests. Payments are
// seeded with Approve/Reject and served back by GetPayment.
type MockGateway struct {
	mu       sync.RWMutex
	charges  map[uuid.UUID]*Charge
	payments map[string]*domain.PaymentRecord
	nextID   int
	prefSeq  int

	// FailCharge, when set, makes CreateCharge fail.
	FailCharge error
	// FailFetch, when set, makes GetPayment fail.
	FailFetch error
	// BaseURL prefixes the generated checkout URLs.
	BaseURL string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		charges:  make(map[uuid.UUID]*Charge),
		payments: make(map[string]*domain.PaymentRecord),
		nextID:   100,
		BaseURL:  "https://mock-gateway.local/checkout",
	}
}

func (g *MockGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCharge != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, g.FailCharge)
	}
	// each call opens a new preference; charges keeps the latest per order
	g.prefSeq++
	id := fmt.Sprintf("pref-%s-%d", req.OrderID, g.prefSeq)
	c := &Charge{PreferenceID: id, PaymentURL: g.BaseURL + "/" + id}
	g.charges[req.OrderID] = c
	return c, nil
}

func (g *MockGateway) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.FailFetch != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, g.FailFetch)
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	cp := *p
	return &cp, nil
}

// Approve records an approved payment for the order and returns its id.
func (g *MockGateway) Approve(orderID uuid.UUID, amount float64) string {
	return g.Seed("", orderID.String(), domain.PaymentApproved, amount)
}

// Reject records a rejected payment for the order and returns its id.
func (g *MockGateway) Reject(orderID uuid.UUID, amount float64) string {
	return g.Seed("", orderID.String(), "rejected", amount)
}

// Seed stores a payment under id (allocated when empty) and returns the id.
func (g *MockGateway) Seed(id, externalRef, status string, amount float64) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		g.nextID++
		id = strconv.Itoa(g.nextID)
	}
	now := time.Now().UTC()
	rec := &domain.PaymentRecord{
		ID:                id,
		Status:            status,
		StatusDetail:      status,
		TransactionAmount: decimal.NewFromFloat(amount),
		CurrencyID:        "ARS",
		PaymentMethodID:   "visa",
		Installments:      1,
		DateCreated:       &now,
		ExternalID:        externalRef,
	}
	if status == domain.PaymentApproved {
		rec.DateApproved = &now
	}
	g.payments[id] = rec
	return id
}

// ChargeFor returns the latest charge created for the order, if any.
func (g *MockGateway) ChargeFor(orderID uuid.UUID) (*Charge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.charges[orderID]
	return c, ok
}

var errSimulatedOutage = errors.New("simulated gateway outage")

// Outage toggles both directions of the gateway into failure.
func (g *MockGateway) Outage(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if down {
		g.FailCharge, g.FailFetch = errSimulatedOutage, errSimulatedOutage
		return
	}
	g.FailCharge, g.FailFetch = nil, nil
}

package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/payment"
	"merch-pickup/internal/service"

	"github.com/google/uuid"
)

type stubOrders struct {
	service.OrderService

	mu         sync.Mutex
	details    map[uuid.UUID]*domain.OrderDetail
	stands     []domain.Stand
	expireErr  error
	deliverErr error
	getErr     error
}

func newStubOrders() *stubOrders {
	return &stubOrders{details: make(map[uuid.UUID]*domain.OrderDetail)}
}

func (s *stubOrders) put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[o.ID] = &domain.OrderDetail{Order: o}
}

func (s *stubOrders) setStatus(id uuid.UUID, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[id].Status = status
}

func (s *stubOrders) GetOrder(_ context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.details[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubOrders) ListUserOrders(_ context.Context, userID uuid.UUID) ([]domain.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.OrderDetail{}
	for _, d := range s.details {
		if d.BelongsTo(userID) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *stubOrders) ListStands(context.Context) ([]domain.Stand, error) {
	return s.stands, nil
}

func (s *stubOrders) ExpireReservation(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireErr != nil {
		return nil, s.expireErr
	}
	d, ok := s.details[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if d.ReservationOpen() {
		d.Status = domain.OrderCancelled
	}
	o := d.Order
	return &o, nil
}

func (s *stubOrders) MarkDelivered(_ context.Context, qrCode string, standID uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliverErr != nil {
		return nil, s.deliverErr
	}
	for _, d := range s.details {
		if d.QRCode == qrCode {
			d.Status = domain.OrderDelivered
			d.DeliveredByStandID = &standID
			o := d.Order
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (s *stubOrders) MarkReturned(_ context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		return nil, fmt.Errorf("%w: a return reason is required", domain.ErrValidation)
	}
	d, ok := s.details[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	d.Status = domain.OrderReturned
	d.ReturnReason = &reason
	o := d.Order
	return &o, nil
}

type stubPayments struct {
	service.PaymentService

	mu       sync.Mutex
	webhooks []domain.WebhookEvent
	records  map[string]*domain.PaymentRecord
	links    map[string]map[string]any
	chargeFn func(orderID uuid.UUID, requester *uuid.UUID) (*service.ChargeResult, error)
}

func (s *stubPayments) HandleWebhook(_ context.Context, ev domain.WebhookEvent) service.WebhookOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks = append(s.webhooks, ev)
	return service.WebhookApplied
}

func (s *stubPayments) received() []domain.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WebhookEvent(nil), s.webhooks...)
}

func (s *stubPayments) GetPayment(_ context.Context, id string) (*domain.PaymentRecord, error) {
	if rec, ok := s.records[id]; ok {
		return rec, nil
	}
	return nil, payment.ErrPaymentNotFound
}

func (s *stubPayments) LinkDetails(_ context.Context, token string) (map[string]any, error) {
	if link, ok := s.links[token]; ok {
		return link, nil
	}
	return nil, domain.ErrLinkNotFound
}

func (s *stubPayments) RequestCharge(_ context.Context, orderID uuid.UUID, requester *uuid.UUID) (*service.ChargeResult, error) {
	return s.chargeFn(orderID, requester)
}

type stubCheckout struct {
	mu   sync.Mutex
	keys []string
	fn   func(in domain.NewOrderInput) (*service.CheckoutResult, error)
}

func (s *stubCheckout) Checkout(_ context.Context, key string, in domain.NewOrderInput) (*service.CheckoutResult, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return s.fn(in)
}

type stubHealth map[string]string

func (s stubHealth) Health(context.Context) map[string]string { return s }

func cashOrder(createdAt time.Time, userID *uuid.UUID) domain.Order {
	return domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		QRCode:        "QR-1730573000000-abc123xyz",
		Status:        domain.OrderPending,
		PaymentMethod: domain.PaymentCash,
		SaleType:      domain.SaleOnline,
		StandID:       uuid.New(),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func cardOrder(createdAt time.Time, userID *uuid.UUID) domain.Order {
	o := cashOrder(createdAt, userID)
	o.PaymentMethod = domain.PaymentCard
	o.Status = domain.OrderWaitingPayment
	o.QRCode = "QR-1730573000000-card00001"
	return o
}

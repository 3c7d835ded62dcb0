package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/notify"
	"merch-pickup/internal/repo"

	"github.com/google/uuid"
)

type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]domain.Order
	items    map[uuid.UUID][]domain.OrderItem
	failItem error
	deleted  []uuid.UUID
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]domain.Order{}, items: map[uuid.UUID][]domain.OrderItem{}}
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *fakeOrderRepo) CreateItems(_ context.Context, items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failItem != nil {
		return r.failItem
	}
	for _, it := range items {
		r.items[it.OrderID] = append(r.items[it.OrderID], it)
	}
	return nil
}

func (r *fakeOrderRepo) DeleteOrder(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeOrderRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *fakeOrderRepo) FindByQRCode(_ context.Context, code string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.QRCode == code {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) FindDetail(_ context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &domain.OrderDetail{Order: o, Items: append([]domain.OrderItem{}, r.items[id]...)}, nil
}

func (r *fakeOrderRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]domain.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderDetail
	for _, o := range r.orders {
		if o.BelongsTo(userID) {
			out = append(out, domain.OrderDetail{Order: o, Items: r.items[o.ID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeOrderRepo) Transition(_ context.Context, id uuid.UUID, t repo.Transition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	if t.OnlyMethod != "" && o.PaymentMethod != t.OnlyMethod {
		return false, nil
	}
	allowed := false
	for _, s := range t.From {
		if s == o.Status {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	o.Status = t.To
	o.UpdatedAt = t.At
	o.PaymentValidated = o.PaymentValidated || t.PaymentValidated
	if t.DeliveredBy != nil {
		o.DeliveredByStandID = t.DeliveredBy
	}
	if t.To == domain.OrderDelivered {
		at := t.At
		o.DeliveredAt = &at
	}
	if t.ReturnReason != nil {
		o.ReturnReason = t.ReturnReason
	}
	if t.To == domain.OrderReturned {
		at := t.At
		o.ReturnedAt = &at
	}
	r.orders[id] = o
	return true, nil
}

func (r *fakeOrderRepo) FindExpiredReservations(_ context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.PaymentMethod == domain.PaymentCash && !o.PaymentValidated &&
			(o.Status == domain.OrderPending || o.Status == domain.OrderWaitingPayment) &&
			o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOrderRepo) status(id uuid.UUID) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type fakeStandRepo struct {
	stands map[uuid.UUID]domain.Stand
}

func newFakeStandRepo(stands ...domain.Stand) *fakeStandRepo {
	r := &fakeStandRepo{stands: map[uuid.UUID]domain.Stand{}}
	for _, s := range stands {
		r.stands[s.ID] = s
	}
	return r
}

func (r *fakeStandRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Stand, error) {
	s, ok := r.stands[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeStandRepo) ListActive(_ context.Context) ([]domain.Stand, error) {
	out := []domain.Stand{}
	for _, s := range r.stands {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTransactionRepo struct {
	mu   sync.Mutex
	txns map[uuid.UUID]domain.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txns: map[uuid.UUID]domain.Transaction{}}
}

func (r *fakeTransactionRepo) UpsertPending(_ context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.txns[txn.OrderID]
	if ok && cur.Status == domain.TransactionApproved {
		*txn = cur
		return nil
	}
	if ok {
		cur.Status = domain.TransactionPending
		cur.PaymentURL = txn.PaymentURL
		cur.PaymentID = nil
		cur.UpdatedAt = txn.UpdatedAt
		*txn = cur
	}
	r.txns[txn.OrderID] = *txn
	return nil
}

func (r *fakeTransactionRepo) FindByOrder(_ context.Context, orderID uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[orderID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *fakeTransactionRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status domain.TransactionStatus, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[orderID]
	if !ok {
		t = domain.Transaction{ID: uuid.New(), OrderID: orderID}
	}
	if ok && t.Status == status && t.PaymentID != nil && *t.PaymentID == paymentID {
		return false, nil
	}
	t.Status = status
	t.PaymentID = &paymentID
	r.txns[orderID] = t
	return true, nil
}

type fakeUnmatchedRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.UnmatchedPayment
}

func newFakeUnmatchedRepo() *fakeUnmatchedRepo {
	return &fakeUnmatchedRepo{entries: map[string]*domain.UnmatchedPayment{}}
}

func (r *fakeUnmatchedRepo) Record(_ context.Context, paymentID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[paymentID]
	if !ok {
		e = &domain.UnmatchedPayment{PaymentID: paymentID}
		r.entries[paymentID] = e
	}
	e.Reason = reason
	e.Attempts++
	e.ResolvedAt = nil
	return nil
}

func (r *fakeUnmatchedRepo) ListPending(_ context.Context, maxAttempts, limit int) ([]domain.UnmatchedPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UnmatchedPayment
	for _, e := range r.entries {
		if e.ResolvedAt == nil && e.Attempts < maxAttempts && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeUnmatchedRepo) MarkResolved(_ context.Context, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[paymentID]; ok {
		now := time.Now()
		e.ResolvedAt = &now
	}
	return nil
}

func (r *fakeUnmatchedRepo) get(paymentID string) (domain.UnmatchedPayment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[paymentID]
	if !ok {
		return domain.UnmatchedPayment{}, false
	}
	return *e, true
}

type fakeLinkRepo struct {
	links map[string]map[string]any
}

func (r *fakeLinkRepo) FindByToken(_ context.Context, token string) (map[string]any, error) {
	l, ok := r.links[token]
	if !ok {
		return nil, nil
	}
	return l, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs {
		out = append(out, m.Event)
	}
	return out
}

// clock is a settable time source for simulated minutes.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var errDiskFull = errors.New("disk full")

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/repo"
	"merch-pickup/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrderRepo struct {
	repo.OrderRepo
	expired []domain.Order
	cutoff  time.Time
}

func (r *stubOrderRepo) FindExpiredReservations(_ context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	r.cutoff = createdBefore
	if len(r.expired) > limit {
		return r.expired[:limit], nil
	}
	return r.expired, nil
}

type stubOrderService struct {
	service.OrderService
	mu      sync.Mutex
	expired []uuid.UUID
	fail    map[uuid.UUID]error
}

func (s *stubOrderService) ExpireReservation(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[id]; err != nil {
		return nil, err
	}
	s.expired = append(s.expired, id)
	return &domain.Order{ID: id, Status: domain.OrderCancelled}, nil
}

type stubPaymentService struct {
	service.PaymentService
	calls    int
	resolved int
	err      error
}

func (s *stubPaymentService) RetryUnmatched(_ context.Context, limit int) (int, error) {
	s.calls++
	return s.resolved, s.err
}

func TestProcessSweepsAndRetries(t *testing.T) {
	now := time.Date(2024, 11, 2, 19, 0, 0, 0, time.UTC)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	orders := &stubOrderRepo{expired: []domain.Order{{ID: a}, {ID: b}, {ID: c}}}
	svc := &stubOrderService{fail: map[uuid.UUID]error{b: errors.New("db blip")}}
	payments := &stubPaymentService{resolved: 2}

	rw := NewReconciliationWorker(orders, svc, payments, time.Minute, 10)
	rw.now = func() time.Time { return now }

	require.NoError(t, rw.process(context.Background()))
	assert.Equal(t, now.Add(-30*time.Minute), orders.cutoff)
	assert.Equal(t, []uuid.UUID{a, c}, svc.expired)
	assert.Equal(t, 1, payments.calls)
}

func TestProcessReportsRetryFailure(t *testing.T) {
	rw := NewReconciliationWorker(&stubOrderRepo{}, &stubOrderService{}, &stubPaymentService{err: errors.New("boom")}, time.Minute, 0)
	assert.Error(t, rw.process(context.Background()))
	assert.Equal(t, 50, rw.batch)
}

func TestRunStopsOnCancel(t *testing.T) {
	payments := &stubPaymentService{}
	rw := NewReconciliationWorker(&stubOrderRepo{}, &stubOrderService{}, payments, 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

package worker

import (
	"context"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/repo"
	"merch-pickup/internal/service"

	"github.com/rs/zerolog/log"
)

// ReconciliationWorker closes what no viewer is around to close: cash
// reservations whose window lapsed with the page shut, and gateway payments
// the webhook had to dead-letter.
type ReconciliationWorker struct {
	orderRepo repo.OrderRepo
	orders    service.OrderService
	payments  service.PaymentService
	interval  time.Duration
	batch     int
	now       func() time.Time
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	orders service.OrderService,
	payments service.PaymentService,
	interval time.Duration,
	batch int,
) *ReconciliationWorker {
	if batch <= 0 {
		batch = 50
	}
	return &ReconciliationWorker{
		orderRepo: orderRepo,
		orders:    orders,
		payments:  payments,
		interval:  interval,
		batch:     batch,
		now:       time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", rw.interval).Msg("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciliation worker stopped")
			return
		case <-ticker.C:
			if err := rw.process(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("reconciliation failed")
			}
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) error {
	if err := rw.sweepExpired(ctx); err != nil {
		return err
	}
	resolved, err := rw.payments.RetryUnmatched(ctx, rw.batch)
	if err != nil {
		return err
	}
	if resolved > 0 {
		log.Info().Int("resolved", resolved).Msg("dead-lettered payments applied")
	}
	return nil
}

// sweepExpired cancels cash reservations older than the reservation window.
func (rw *ReconciliationWorker) sweepExpired(ctx context.Context) error {
	cutoff := rw.now().Add(-domain.ReservationWindow)
	expired, err := rw.orderRepo.FindExpiredReservations(ctx, cutoff, rw.batch)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	log.Info().Int("count", len(expired)).Msg("found lapsed reservations")

	for _, order := range expired {
		updated, err := rw.orders.ExpireReservation(ctx, order.ID)
		if err != nil {
			log.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to expire reservation")
			continue // next sweep picks it up again
		}
		if updated.Status == domain.OrderCancelled {
			log.Info().Str("order_id", order.ID.String()).Msg("reservation expired")
		}
	}
	return nil
}

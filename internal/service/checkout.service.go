package service

import (
	"context"
	"errors"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/guard"
	"merch-pickup/internal/infrastructure/notify"

	"github.com/rs/zerolog/log"
)

type CheckoutResult struct {
	Order       *domain.Order `json:"order"`
	PaymentURL  string        `json:"payment_url,omitempty"`
	ChargeError string        `json:"charge_error,omitempty"`
}

// CheckoutService turns a finalized cart into an order and, for card
// payments, a hosted checkout.
type CheckoutService interface {
	// Checkout rejects a second submit under the same key while the first
	// is still running with domain.ErrCheckoutInFlight.
	Checkout(ctx context.Context, key string, in domain.NewOrderInput) (*CheckoutResult, error)
}

type checkoutService struct {
	orders   OrderService
	payments PaymentService
	guard    guard.Guard
	notifier notify.Notifier
	lockTTL  time.Duration
}

func NewCheckoutService(
	orders OrderService,
	payments PaymentService,
	g guard.Guard,
	notifier notify.Notifier,
	lockTTL time.Duration,
) CheckoutService {
	if notifier == nil {
		notifier = notify.NewNopNotifier()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &checkoutService{orders: orders, payments: payments, guard: g, notifier: notifier, lockTTL: lockTTL}
}

func (s *checkoutService) Checkout(ctx context.Context, key string, in domain.NewOrderInput) (*CheckoutResult, error) {
	if key != "" {
		release, err := s.guard.Acquire(ctx, key, s.lockTTL)
		switch {
		case errors.Is(err, guard.ErrHeld):
			return nil, domain.ErrCheckoutInFlight
		case err != nil:
			// lock store down: let the checkout through rather than block sales
			log.Warn().Err(err).Msg("checkout guard unavailable")
		default:
			defer release()
		}
	}

	order, err := s.orders.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{Order: order}

	if order.PaymentMethod == domain.PaymentCard {
		charge, err := s.payments.RequestCharge(ctx, order.ID, order.UserID)
		if err != nil {
			// the order stays in waiting_payment; the buyer can retry the charge
			result.ChargeError = "payment provider unavailable, retry from your order page"
		} else {
			result.PaymentURL = charge.PaymentURL
		}
	}

	msg := notify.NewMessage(notify.EventOrderCreated, order)
	msg.PaymentURL = result.PaymentURL
	s.notifier.Notify(ctx, msg)
	return result, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/notify"
	"merch-pickup/internal/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderService is the only writer of order status.
type OrderService interface {
	CreateOrder(ctx context.Context, in domain.NewOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]domain.OrderDetail, error)
	ListStands(ctx context.Context) ([]domain.Stand, error)

	// ConfirmPayment moves a card order from waiting_payment to pending.
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ExpireReservation cancels a lapsed cash reservation. Calls that cannot
	// apply (card order, already paid, already closed) are no-ops.
	ExpireReservation(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MarkDelivered(ctx context.Context, qrCode string, standID uuid.UUID) (*domain.Order, error)
	MarkReturned(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error)
}

type orderService struct {
	orderRepo repo.OrderRepo
	standRepo repo.StandRepo
	notifier  notify.Notifier
	now       func() time.Time
}

func NewOrderService(
	orderRepo repo.OrderRepo,
	standRepo repo.StandRepo,
	notifier notify.Notifier,
	now func() time.Time,
) OrderService {
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = notify.NewNopNotifier()
	}
	return &orderService{
		orderRepo: orderRepo,
		standRepo: standRepo,
		notifier:  notifier,
		now:       now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, in domain.NewOrderInput) (*domain.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	stand, err := s.standRepo.FindById(ctx, in.StandID)
	if err != nil {
		return nil, fmt.Errorf("load stand: %w", err)
	}
	if stand == nil || !stand.IsActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrStandNotFound, in.StandID)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:               uuid.New(),
		UserID:           in.UserID,
		CustomerName:     strings.TrimSpace(in.CustomerName),
		CustomerEmail:    strings.TrimSpace(in.CustomerEmail),
		QRCode:           domain.NewPickupCode(now),
		Status:           domain.InitialStatus(in.PaymentMethod),
		PaymentMethod:    in.PaymentMethod,
		PaymentValidated: false,
		TotalAmount:      domain.CartSubtotal(in.Cart),
		SaleType:         in.SaleType,
		StandID:          in.StandID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	items := make([]domain.OrderItem, 0, len(in.Cart))
	for _, line := range in.Cart {
		items = append(items, domain.OrderItem{
			ID:               uuid.New(),
			OrderID:          order.ID,
			ProductVariantID: line.VariantID,
			Quantity:         line.Quantity,
			UnitPrice:        line.Price,
			CreatedAt:        now,
		})
	}

	// save order
	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// save items; an order without its items must not survive
	if err := s.orderRepo.CreateItems(ctx, items); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if delErr := s.orderRepo.DeleteOrder(cleanupCtx, order.ID); delErr != nil {
			log.Error().Err(delErr).Str("order_id", order.ID.String()).Msg("rollback failed, orphan order left behind")
		} else {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order rolled back after item insert failure")
		}
		return nil, fmt.Errorf("create order items: %w", err)
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("payment_method", string(order.PaymentMethod)).
		Str("status", string(order.Status)).
		Str("total", order.TotalAmount.String()).
		Msg("order created")
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	detail, err := s.orderRepo.FindDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, domain.ErrOrderNotFound
	}
	return detail, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]domain.OrderDetail, error) {
	orders, err := s.orderRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.OrderDetail{}
	}
	return orders, nil
}

func (s *orderService) ListStands(ctx context.Context) ([]domain.Stand, error) {
	return s.standRepo.ListActive(ctx)
}

func (s *orderService) ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, repo.Transition{To: domain.OrderPending, PaymentValidated: true})
}

func (s *orderService) ExpireReservation(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.ReservationOpen() {
		if order.Status != domain.OrderCancelled {
			log.Warn().
				Str("order_id", order.ID.String()).
				Str("status", string(order.Status)).
				Str("payment_method", string(order.PaymentMethod)).
				Msg("expiry ignored, reservation no longer cancellable")
		}
		return order, nil
	}
	if now := s.now(); now.Before(order.ReservationExpiresAt()) {
		return nil, fmt.Errorf("%w: %s left", domain.ErrReservationActive, order.ReservationExpiresAt().Sub(now).Truncate(time.Second))
	}

	updated, err := s.apply(ctx, order, repo.Transition{To: domain.OrderCancelled, OnlyMethod: domain.PaymentCash})
	if errors.Is(err, domain.ErrInvalidTransition) {
		// lost the race to another writer
		log.Warn().Str("order_id", order.ID.String()).Msg("expiry lost race, keeping current status")
		return s.load(ctx, id)
	}
	return updated, err
}

func (s *orderService) MarkDelivered(ctx context.Context, qrCode string, standID uuid.UUID) (*domain.Order, error) {
	if strings.TrimSpace(qrCode) == "" || standID == uuid.Nil {
		return nil, fmt.Errorf("%w: qr code and stand are required", domain.ErrValidation)
	}
	order, err := s.orderRepo.FindByQRCode(ctx, strings.TrimSpace(qrCode))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	stand, err := s.standRepo.FindById(ctx, standID)
	if err != nil {
		return nil, err
	}
	if stand == nil {
		return nil, domain.ErrStandNotFound
	}
	return s.apply(ctx, order, repo.Transition{To: domain.OrderDelivered, DeliveredBy: &standID})
}

func (s *orderService) MarkReturned(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a return reason is required", domain.ErrValidation)
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, repo.Transition{To: domain.OrderReturned, ReturnReason: &reason})
}

func (s *orderService) load(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// apply runs t as a compare-and-set against the statuses t.To may be reached
// from. Reaching a status the order already has is a no-op.
func (s *orderService) apply(ctx context.Context, order *domain.Order, t repo.Transition) (*domain.Order, error) {
	if order.Status == t.To {
		return order, nil
	}
	if !domain.CanTransition(order.Status, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, t.To)
	}

	t.From = domain.SourcesFor(t.To)
	t.At = s.now().UTC()
	changed, err := s.orderRepo.Transition(ctx, order.ID, t)
	if err != nil {
		return nil, fmt.Errorf("transition %s -> %s: %w", order.Status, t.To, err)
	}

	current, err := s.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		if current.Status == t.To {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, t.To)
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(order.Status)).
		Str("to", string(t.To)).
		Msg("order status changed")
	s.notifier.Notify(ctx, notify.NewMessage(notify.EventOrderStatusChanged, current))
	return current, nil
}

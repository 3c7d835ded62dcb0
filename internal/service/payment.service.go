package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/payment"
	"merch-pickup/internal/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebhookOutcome says what a webhook delivery did. The HTTP response is the
// same for all of them.
type WebhookOutcome string

const (
	WebhookIgnored     WebhookOutcome = "ignored"
	WebhookApplied     WebhookOutcome = "applied"
	WebhookNotApproved WebhookOutcome = "not_approved"
	WebhookUnmatched   WebhookOutcome = "unmatched"
	WebhookDeferred    WebhookOutcome = "deferred"
	WebhookConflict    WebhookOutcome = "conflict"

	// WebhookMismatch is an approved payment whose amount differs from the
	// order total. It is dead-lettered and the order is left untouched.
	WebhookMismatch WebhookOutcome = "amount_mismatch"
)

// MaxUnmatchedAttempts bounds how often a dead-lettered payment is retried.
const MaxUnmatchedAttempts = 20

type ChargeResult struct {
	OrderID    uuid.UUID `json:"order_id"`
	PaymentURL string    `json:"payment_url"`
	Reused     bool      `json:"reused"`
}

type PaymentService interface {
	// RequestCharge opens a hosted checkout for a card order still waiting
	// for payment, or hands back the URL opened earlier.
	RequestCharge(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*ChargeResult, error)
	HandleWebhook(ctx context.Context, ev domain.WebhookEvent) WebhookOutcome
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)
	LinkDetails(ctx context.Context, token string) (map[string]any, error)
	// RetryUnmatched re-applies dead-lettered payments and returns how many
	// were resolved.
	RetryUnmatched(ctx context.Context, limit int) (int, error)
}

type paymentService struct {
	orders       OrderService
	orderRepo    repo.OrderRepo
	transactions repo.TransactionRepo
	unmatched    repo.UnmatchedRepo
	links        repo.LinkRepo
	gateway      payment.PaymentGateway
}

func NewPaymentService(
	orders OrderService,
	orderRepo repo.OrderRepo,
	transactions repo.TransactionRepo,
	unmatched repo.UnmatchedRepo,
	links repo.LinkRepo,
	gateway payment.PaymentGateway,
) PaymentService {
	return &paymentService{
		orders:       orders,
		orderRepo:    orderRepo,
		transactions: transactions,
		unmatched:    unmatched,
		links:        links,
		gateway:      gateway,
	}
}

func (s *paymentService) RequestCharge(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*ChargeResult, error) {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.UserID != nil && (requester == nil || !order.BelongsTo(*requester)) {
		return nil, domain.ErrForbidden
	}
	if order.PaymentMethod != domain.PaymentCard {
		return nil, domain.ErrNotCardOrder
	}
	if order.Status != domain.OrderWaitingPayment {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, order.Status)
	}

	existing, err := s.transactions.FindByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PaymentURL != nil && existing.Status == domain.TransactionPending {
		return &ChargeResult{OrderID: order.ID, PaymentURL: *existing.PaymentURL, Reused: true}, nil
	}

	charge, err := s.gateway.CreateCharge(ctx, payment.ChargeRequest{
		OrderID:    order.ID,
		Amount:     order.TotalAmount,
		PayerEmail: order.CustomerEmail,
		Title:      "Pedido " + order.QRCode,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("charge request failed")
		return nil, err
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Status:     domain.TransactionPending,
		PaymentURL: &charge.PaymentURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.transactions.UpsertPending(ctx, txn); err != nil {
		return nil, fmt.Errorf("store transaction: %w", err)
	}
	if txn.Status == domain.TransactionApproved {
		return nil, fmt.Errorf("%w: payment already approved, awaiting confirmation", domain.ErrInvalidTransition)
	}
	return &ChargeResult{OrderID: order.ID, PaymentURL: charge.PaymentURL}, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, ev domain.WebhookEvent) WebhookOutcome {
	if !ev.ConcernsPayment() {
		log.Debug().Str("action", ev.Action).Str("type", ev.Type).Msg("webhook ignored")
		return WebhookIgnored
	}
	logger := log.With().Str("payment_id", ev.Data.ID).Str("action", ev.Action).Logger()
	outcome, reason := s.applyPayment(ctx, ev.Data.ID)
	switch outcome {
	case WebhookUnmatched, WebhookDeferred, WebhookMismatch:
		logger.Warn().Str("outcome", string(outcome)).Str("reason", reason).Msg("payment dead-lettered")
		if err := s.unmatched.Record(context.WithoutCancel(ctx), ev.Data.ID, reason); err != nil {
			logger.Error().Err(err).Msg("failed to record unmatched payment")
		}
	case WebhookConflict:
		logger.Error().Str("reason", reason).Msg("approved payment for an order that can no longer take it")
	default:
		logger.Info().Str("outcome", string(outcome)).Msg("webhook processed")
	}
	return outcome
}

// applyPayment fetches the payment from the gateway and applies it to the
// order named by its external reference.
func (s *paymentService) applyPayment(ctx context.Context, paymentID string) (WebhookOutcome, string) {
	rec, err := s.gateway.GetPayment(ctx, paymentID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		return WebhookUnmatched, "payment not found at gateway"
	}
	if err != nil {
		return WebhookDeferred, "gateway fetch failed: " + err.Error()
	}

	orderID, err := uuid.Parse(rec.ExternalID)
	if err != nil {
		return WebhookUnmatched, fmt.Sprintf("external reference %q is not an order id", rec.ExternalID)
	}
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return WebhookDeferred, "order lookup failed: " + err.Error()
	}
	if order == nil {
		return WebhookUnmatched, "no order for external reference " + rec.ExternalID
	}

	if rec.Approved() && !rec.TransactionAmount.Equal(order.TotalAmount) {
		log.Warn().
			Str("payment_id", rec.ID).
			Str("order_id", order.ID.String()).
			Str("paid", rec.TransactionAmount.StringFixed(2)).
			Str("total", order.TotalAmount.StringFixed(2)).
			Msg("approved amount does not match order total")
		return WebhookMismatch, fmt.Sprintf("paid %s, order total %s",
			rec.TransactionAmount.StringFixed(2), order.TotalAmount.StringFixed(2))
	}

	if _, err := s.transactions.UpdateStatus(ctx, order.ID, transactionStatus(rec.Status), rec.ID); err != nil {
		return WebhookDeferred, "transaction update failed: " + err.Error()
	}
	if !rec.Approved() {
		return WebhookNotApproved, rec.Status
	}

	if _, err := s.orders.ConfirmPayment(ctx, order.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return WebhookConflict, err.Error()
		}
		return WebhookDeferred, "confirm payment failed: " + err.Error()
	}
	return WebhookApplied, ""
}

func transactionStatus(gatewayStatus string) domain.TransactionStatus {
	switch gatewayStatus {
	case domain.PaymentApproved:
		return domain.TransactionApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.TransactionRejected
	default:
		return domain.TransactionPending
	}
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", domain.ErrValidation)
	}
	return s.gateway.GetPayment(ctx, paymentID)
}

func (s *paymentService) LinkDetails(ctx context.Context, token string) (map[string]any, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", domain.ErrValidation)
	}
	link, err := s.links.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrLinkNotFound
	}
	return link, nil
}

func (s *paymentService) RetryUnmatched(ctx context.Context, limit int) (int, error) {
	pending, err := s.unmatched.ListPending(ctx, MaxUnmatchedAttempts, limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		outcome, reason := s.applyPayment(ctx, p.PaymentID)
		switch outcome {
		case WebhookUnmatched, WebhookDeferred, WebhookMismatch:
			if err := s.unmatched.Record(ctx, p.PaymentID, reason); err != nil {
				log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("failed to update unmatched payment")
			}
			continue
		case WebhookConflict:
			log.Error().Str("payment_id", p.PaymentID).Str("reason", reason).Msg("dead-lettered payment conflicts with order state")
		}
		if err := s.unmatched.MarkResolved(ctx, p.PaymentID); err != nil {
			log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("failed to resolve unmatched payment")
			continue
		}
		resolved++
		log.Info().Str("payment_id", p.PaymentID).Str("outcome", string(outcome)).Int("attempts", p.Attempts).Msg("unmatched payment resolved")
	}
	return resolved, nil
}

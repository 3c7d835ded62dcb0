package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"merch-pickup/internal/config"
	"merch-pickup/internal/database"
	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/guard"
	"merch-pickup/internal/infrastructure/notify"
	"merch-pickup/internal/infrastructure/payment"
	"merch-pickup/internal/logger"
	"merch-pickup/internal/repo"
	"merch-pickup/internal/reservation"
	"merch-pickup/internal/service"
	"merch-pickup/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// simClock lets the simulation jump past the reservation window.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup("warn", true)

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()
	if err := database.InitSchema(ctx, db, cfg.RealtimeChannel); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	var standID uuid.UUID
	if err := db.QueryRowContext(ctx,
		`INSERT INTO stands (name, location) VALUES ('Simulation Stand', 'Gate B') RETURNING id`,
	).Scan(&standID); err != nil {
		log.Fatal().Err(err).Msg("seed stand")
	}

	clock := &simClock{now: time.Now()}
	orderRepo := repo.NewOrderRepo(db)
	gateway := payment.NewMockGateway()
	orders := service.NewOrderService(orderRepo, repo.NewStandRepo(db), notify.NewNopNotifier(), clock.Now)
	payments := service.NewPaymentService(orders, orderRepo, repo.NewTransactionRepo(db), repo.NewUnmatchedRepo(db), repo.NewLinkRepo(db), gateway)
	checkout := service.NewCheckoutService(orders, payments, guard.NewMemoryGuard(), nil, 0)

	cart := []domain.CartLine{{VariantID: uuid.New(), Quantity: 2, Price: decimal.NewFromInt(16000)}}
	newInput := func(method domain.PaymentMethod, i int) domain.NewOrderInput {
		return domain.NewOrderInput{
			CustomerName:  fmt.Sprintf("Buyer %d", i),
			CustomerEmail: fmt.Sprintf("buyer%d@example.com", i),
			PaymentMethod: method,
			StandID:       standID,
			Cart:          cart,
		}
	}

	fmt.Println("--- CARD: CHECKOUT, APPROVED WEBHOOK DELIVERED TWICE ---")
	res, err := checkout.Checkout(ctx, "sim-card", newInput(domain.PaymentCard, 1))
	if err != nil {
		log.Fatal().Err(err).Msg("card checkout")
	}
	fmt.Printf("order %s -> %s, pay at %s\n", res.Order.ID, res.Order.Status, res.PaymentURL)
	paymentID := gateway.Approve(res.Order.ID, res.Order.TotalAmount.InexactFloat64())
	for i := 0; i < 2; i++ {
		ev := domain.WebhookEvent{Action: domain.WebhookPaymentUpdated}
		ev.Data.ID = paymentID
		fmt.Printf("webhook %d: %s\n", i+1, payments.HandleWebhook(ctx, ev))
	}
	printStatus(ctx, orders, res.Order.ID)

	fmt.Println("--- CASH: RESERVATION COUNTDOWN RUNS OUT ---")
	res, err = checkout.Checkout(ctx, "sim-cash", newInput(domain.PaymentCash, 2))
	if err != nil {
		log.Fatal().Err(err).Msg("cash checkout")
	}
	cashID := res.Order.ID
	if _, err := orders.ExpireReservation(ctx, cashID); err != nil {
		fmt.Printf("expire at 00:00 elapsed: %v\n", err)
	}
	clock.Advance(domain.ReservationWindow)
	timer := reservation.New(res.Order.ReservationExpiresAt(),
		func(left time.Duration) { fmt.Printf("remaining %s\n", reservation.Format(left)) },
		func() {
			if _, err := orders.ExpireReservation(ctx, cashID); err != nil {
				fmt.Printf("expire failed: %v\n", err)
			}
		},
		reservation.WithClock(clock.Now),
	)
	timer.Evaluate(clock.Now())
	timer.Stop()
	// a stale second countdown is a no-op
	if _, err := orders.ExpireReservation(ctx, cashID); err != nil {
		fmt.Printf("second expire: %v\n", err)
	}
	printStatus(ctx, orders, cashID)

	fmt.Println("--- CARD: PAYMENT ARRIVES BEFORE ITS ORDER IS KNOWN ---")
	orphanOrder := uuid.New()
	orphanPayment := gateway.Seed("", orphanOrder.String(), domain.PaymentApproved, 32000)
	ev := domain.WebhookEvent{Action: domain.WebhookPaymentCreated}
	ev.Data.ID = orphanPayment
	fmt.Printf("webhook: %s\n", payments.HandleWebhook(ctx, ev))

	workerCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rw := worker.NewReconciliationWorker(orderRepo, orders, payments, 500*time.Millisecond, 10)
	rw.Run(workerCtx)
	fmt.Println("--- SIMULATION DONE ---")
}

func printStatus(ctx context.Context, orders service.OrderService, id uuid.UUID) {
	detail, err := orders.GetOrder(ctx, id)
	if err != nil {
		fmt.Printf("    -> lookup failed: %v\n", err)
		return
	}
	fmt.Printf("    -> DB Status: %s (payment_validated=%t, total=%s)\n", detail.Status, detail.PaymentValidated, detail.TotalAmount.StringFixed(2))
	fmt.Println("---------------------------------------------------")
}

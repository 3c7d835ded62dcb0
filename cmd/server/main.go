package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merch-pickup/internal/config"
	"merch-pickup/internal/database"
	"merch-pickup/internal/handler"
	"merch-pickup/internal/infrastructure/guard"
	"merch-pickup/internal/infrastructure/notify"
	"merch-pickup/internal/infrastructure/payment"
	"merch-pickup/internal/logger"
	"merch-pickup/internal/realtime"
	"merch-pickup/internal/repo"
	"merch-pickup/internal/server"
	"merch-pickup/internal/service"
	"merch-pickup/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, !cfg.Production())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	dbService := database.New(db, cfg.DBDatabase)
	defer dbService.Close()

	if err := database.InitSchema(ctx, db, cfg.RealtimeChannel); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	orderRepo := repo.NewOrderRepo(db)
	standRepo := repo.NewStandRepo(db)
	transactionRepo := repo.NewTransactionRepo(db)
	unmatchedRepo := repo.NewUnmatchedRepo(db)
	linkRepo := repo.NewLinkRepo(db)

	var gateway payment.PaymentGateway
	if cfg.MPAccessToken != "" {
		gateway, err = payment.NewMercadoPagoGateway(cfg.MPAccessToken, cfg.MPNotificationURL, cfg.PublicBaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("init payment gateway")
		}
	} else {
		log.Warn().Msg("MERCADO_PAGO_ACCESS_TOKEN not set, using mock gateway")
		gateway = payment.NewMockGateway()
	}

	var checkoutGuard guard.Guard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		checkoutGuard = guard.NewRedisGuard(rdb)
	} else {
		checkoutGuard = guard.NewMemoryGuard()
	}

	var notifier notify.Notifier
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		notifier = notify.NewKafkaNotifier(notify.NewKafkaWriter(brokers, cfg.KafkaTopic))
	} else {
		notifier = notify.NewNopNotifier()
	}
	defer notifier.Close()

	orderService := service.NewOrderService(orderRepo, standRepo, notifier, time.Now)
	paymentService := service.NewPaymentService(orderService, orderRepo, transactionRepo, unmatchedRepo, linkRepo, gateway)
	checkoutService := service.NewCheckoutService(orderService, paymentService, checkoutGuard, notifier, cfg.CheckoutLockTTL)

	hub := realtime.NewHub()
	listener := realtime.NewPGListener(cfg.DatabaseURL(), cfg.RealtimeChannel, hub)
	sync := realtime.NewSync(hub, orderService.GetOrder)

	g, gctx := errgroup.WithContext(ctx)

	h := handler.New(orderService, paymentService, checkoutService, sync, dbService)
	router := server.NewRouter(h, server.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		JWTSecret:      cfg.JWTSecret,
		Production:     cfg.Production(),
	})

	// Event streams stay open, so there is no WriteTimeout; request contexts
	// derive from gctx so they end on shutdown.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})
	if cfg.SweepEnabled {
		rw := worker.NewReconciliationWorker(orderRepo, orderService, paymentService, cfg.SweepInterval, cfg.SweepBatchSize)
		g.Go(func() error {
			rw.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}

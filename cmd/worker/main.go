package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/claims"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/database"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/gateway"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/messaging"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/notify"
	"github.com/schoolpay/payment-gateway/internal/config"
	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core/service"
)

// The worker runs the two background halves of the payment service: the
// event consumer that fans completed/failed events out to notifications, and
// the recurring-billing ticker that charges due profiles.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapters: Repositories (implement output ports)
	paymentRepo := database.NewGormPaymentRepository(dbConn.DB)
	profileRepo := database.NewGormProfileRepository(dbConn.DB)
	gatewayConfigRepo := database.NewGormGatewayConfigRepository(dbConn.DB)

	// Initialize secondary adapter: Redis claim store
	redisClient, err := claims.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	claimStore := claims.NewRedisClaimStore(redisClient)

	// Initialize secondary adapter: Messaging (concrete type for the worker)
	msgClient, err := messaging.NewRabbitMQClientConcrete(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer msgClient.Close()

	// Initialize secondary adapter: Gateway registry
	registry := gateway.NewRegistry()
	registry.Register(gateway.NewCashAdapter("cash"))
	registry.Register(gateway.NewCashAdapter("cheque"))
	registry.Register(gateway.NewSandboxAdapter(cfg.Payments.SandboxCheckoutBase))

	// Initialize core services
	orchestrator := service.NewPaymentOrchestrator(
		paymentRepo, gatewayConfigRepo, registry, msgClient,
		cfg.Payments.GatewayTimeout, logger,
	)
	billingScheduler := service.NewRecurringBillingScheduler(
		profileRepo, orchestrator, claimStore, msgClient,
		cfg.Billing.ClaimTTL, logger,
	)

	// Start consuming domain events
	notifier := notify.NewLogNotifier(logger)
	if err := msgClient.ConsumeEvents(ctx, notifier); err != nil {
		logger.Fatal("Failed to start consuming events", zap.Error(err))
	}

	// Start the recurring-billing ticker
	go func() {
		ticker := time.NewTicker(cfg.Billing.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				report, err := billingScheduler.RunDueCycle(ctx, now.UTC())
				if err != nil {
					logger.Error("billing cycle failed", zap.Error(err))
					continue
				}
				logger.Info("billing cycle finished",
					zap.Int("selected", report.Selected),
					zap.Int("charged", report.Charged),
					zap.Int("failed", report.Failed),
					zap.Int("suspended", report.Suspended),
					zap.Int("skipped", report.Skipped),
					zap.Int("deferred", report.Deferred),
				)
			}
		}
	}()

	logger.Info("Payment worker started",
		zap.Duration("billing_interval", cfg.Billing.Interval),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	cancel()
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handler "github.com/schoolpay/payment-gateway/internal/adapter/primary/http"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/claims"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/database"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/gateway"
	"github.com/schoolpay/payment-gateway/internal/adapter/secondary/messaging"
	"github.com/schoolpay/payment-gateway/internal/config"
	"github.com/schoolpay/payment-gateway/internal/constant/model/db"
	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/core/service"
)

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

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapters: Repositories (implement output ports)
	paymentRepo := database.NewGormPaymentRepository(dbConn.DB)
	refundRepo := database.NewGormRefundRepository(dbConn.DB)
	profileRepo := database.NewGormProfileRepository(dbConn.DB)
	gatewayConfigRepo := database.NewGormGatewayConfigRepository(dbConn.DB)

	if err := seedGateways(context.Background(), gatewayConfigRepo, cfg); err != nil {
		logger.Fatal("Failed to seed gateway configuration", zap.Error(err))
	}

	// Initialize secondary adapter: Messaging
	publisher, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer publisher.Close()

	// Initialize secondary adapter: Gateway registry
	registry := gateway.NewRegistry()
	registry.Register(gateway.NewCashAdapter("cash"))
	registry.Register(gateway.NewCashAdapter("cheque"))
	registry.Register(gateway.NewSandboxAdapter(cfg.Payments.SandboxCheckoutBase))

	// Initialize core services (implement input ports)
	orchestrator := service.NewPaymentOrchestrator(
		paymentRepo, gatewayConfigRepo, registry, publisher,
		cfg.Payments.GatewayTimeout, logger,
	)
	callbackProcessor := service.NewCallbackProcessor(orchestrator, paymentRepo, registry, logger)
	refundEngine := service.NewRefundEngine(
		refundRepo, paymentRepo, gatewayConfigRepo, registry, publisher,
		cfg.Payments.GatewayTimeout, logger,
	)

	// The manual billing trigger shares the Redis claim store with the
	// worker's ticker, so a manual run never double-charges a profile a
	// concurrent worker run already claimed.
	redisClient, err := claims.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	claimStore := claims.NewRedisClaimStore(redisClient)

	billingScheduler := service.NewRecurringBillingScheduler(
		profileRepo, orchestrator, claimStore, publisher,
		cfg.Billing.ClaimTTL, logger,
	)

	// Initialize primary adapters: HTTP handlers (use input ports)
	paymentHandler := handler.NewPaymentHandler(orchestrator)
	webhookHandler := handler.NewWebhookHandler(callbackProcessor, logger)
	refundHandler := handler.NewRefundHandler(refundEngine)
	billingHandler := handler.NewBillingHandler(billingScheduler)

	// Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Provider-facing endpoints. These live outside /api/v1 because gateways
	// are configured with stable URLs.
	e.POST("/payments/:gateway/webhook", webhookHandler.HandleWebhook)
	e.GET("/payments/:gateway/callback", webhookHandler.HandleCallback)
	e.POST("/payments/:gateway/callback", webhookHandler.HandleCallback)

	// Client-facing API
	api := e.Group("/api/v1")
	api.POST("/payments", paymentHandler.InitiatePayment)
	api.POST("/payments/offline", paymentHandler.RecordOfflinePayment)
	api.GET("/payments/:id", paymentHandler.GetPayment)
	api.POST("/payments/:id/refunds", refundHandler.CreateRefund)
	api.GET("/payments/:id/refunds", refundHandler.ListRefunds)
	api.GET("/payment-gateways", paymentHandler.ListGateways)
	api.GET("/refunds/:id", refundHandler.GetRefund)
	api.POST("/refunds/:id/process", refundHandler.ProcessRefund)
	api.POST("/refunds/:id/cancel", refundHandler.CancelRefund)
	api.POST("/billing/profiles", billingHandler.CreateProfile)
	api.GET("/billing/profiles/:id", billingHandler.GetProfile)
	api.POST("/billing/profiles/:id/reactivate", billingHandler.ReactivateProfile)
	api.POST("/billing/profiles/:id/cancel", billingHandler.CancelProfile)
	api.POST("/billing/run", billingHandler.RunDueCycle)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Starting API server", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// seedGateways inserts the default gateway catalog. Existing rows win, so
// operators can tune fees and credentials without redeploying.
func seedGateways(ctx context.Context, repo *database.GormGatewayConfigRepository, cfg *config.Config) error {
	defaults := []*core.PaymentGatewayConfig{
		{
			Code:     "cash",
			Type:     "offline",
			Name:     "Cash",
			IsActive: true,
		},
		{
			Code:     "cheque",
			Type:     "offline",
			Name:     "Cheque",
			IsActive: true,
		},
		{
			Code:     gateway.SandboxCode,
			Type:     "card",
			Name:     "Sandbox",
			IsActive: true,
			IsOnline: true,
			Credentials: map[string]string{
				"api_key": "sandbox-test-key",
			},
			FeePercentage:       2.9,
			FeeFixed:            6.0,
			MinAmount:           1,
			SupportedCurrencies: []core.Currency{core.Currency(cfg.Payments.DefaultCurrency), "ETB"},
		},
	}
	for _, g := range defaults {
		if err := repo.Seed(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

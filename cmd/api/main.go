package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopzen/shopzen-backend/api/middleware"
	"github.com/shopzen/shopzen-backend/api/routes"
	"github.com/shopzen/shopzen-backend/internal/auth"
	"github.com/shopzen/shopzen-backend/internal/cart"
	"github.com/shopzen/shopzen-backend/internal/chat"
	"github.com/shopzen/shopzen-backend/internal/chat/tools"
	"github.com/shopzen/shopzen-backend/internal/inventory"
	"github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/internal/payments"
	products "github.com/shopzen/shopzen-backend/internal/products"
	"github.com/shopzen/shopzen-backend/internal/users"
	"github.com/shopzen/shopzen-backend/internal/wishlist"
	"github.com/shopzen/shopzen-backend/pkg/auth/session"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	"github.com/shopzen/shopzen-backend/pkg/instance"
	"github.com/shopzen/shopzen-backend/pkg/llm"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
	"github.com/shopzen/shopzen-backend/pkg/migrate"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/razorpay"
	"github.com/shopzen/shopzen-backend/pkg/redis"
	"github.com/shopzen/shopzen-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}
	registerParams := auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password}
	registerService, err := auth.NewRegisterService(registerParams)
	if err != nil {
		logg.Error(ctx, "failed to create register service", err)
		os.Exit(1)
	}
	adminRegisterService, err := auth.NewAdminRegisterService(registerParams)
	if err != nil {
		logg.Error(ctx, "failed to create admin register service", err)
		os.Exit(1)
	}

	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(dbClient.DB()),
		ProductRepo:  productRepo,
		Cart:         cartService,
		TxRunner:     dbClient,
	})
	if err != nil {
		logg.Error(ctx, "failed to create wishlist service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		inventory.NewLedger(logg),
		cfg.Payments.Currency,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := buildPayments(ctx, cfg, logg, dbClient, redisClient, ordersService, outboxService)
	if err != nil {
		logg.Error(ctx, "failed to create payments service", err)
		os.Exit(1)
	}

	chatService, err := buildChat(ctx, cfg, logg, dbClient, outboxService, productService, ordersService)
	if err != nil {
		logg.Error(ctx, "failed to create chat service", err)
		os.Exit(1)
	}

	chatLimiter := middleware.NewUserRateLimiter(cfg.Chat.RateLimitRPS, cfg.Chat.RateLimitBurst)
	go chatLimiter.RunSweeper(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			chatLimiter,
			authService,
			registerService,
			adminRegisterService,
			productService,
			cartService,
			wishlistService,
			ordersService,
			paymentsService,
			chatService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

// buildPayments falls back to the mock gateway for any provider without
// credentials. Webhook verifiers stay unset unless their client is configured.
func buildPayments(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	ordersService orders.Service,
	outboxService *outbox.Service,
) (payments.Service, error) {
	gateways := payments.NewGateways(payments.NewMockGateway(cfg.Payments.MockSigningSecret))
	params := payments.ServiceParams{
		Repo:        payments.NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Orders:      ordersService,
		Outbox:      outboxService,
		Gateways:    gateways,
		Metrics:     metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		Config:      cfg.Payments,
		MockEnabled: cfg.Payments.EnableMockPayment && !cfg.App.IsProd(),
	}

	if cfg.Razorpay.Configured() {
		client, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
		if err != nil {
			return nil, err
		}
		gateways.Register(enums.PaymentProviderRazorpay, payments.NewRazorpayGateway(client))
		params.RazorpayWebhooks = client
	} else {
		logg.Warn(ctx, "razorpay credentials missing, using mock gateway")
	}

	if cfg.Stripe.APIKey != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		gateways.Register(enums.PaymentProviderStripe, payments.NewStripeGateway(client))
		params.StripeWebhooks = client
	}

	guard, err := payments.NewWebhookGuard(redisClient, cfg.Payments.WebhookReplayTTL)
	if err != nil {
		return nil, err
	}
	params.Guard = guard

	return payments.NewService(params)
}

// buildChat runs the assistant in offline mode when no model key is set.
func buildChat(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	outboxService *outbox.Service,
	productService products.Service,
	ordersService orders.Service,
) (chat.Service, error) {
	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)
	escalator := chat.NewOutboxEscalator(dbClient, outboxService, chatMetrics, logg)

	params := chat.ServiceParams{
		Repo: chat.NewRepository(dbClient.DB()),
		Registry: tools.NewRegistry(
			tools.SearchProducts(productService),
			tools.OrderStatus(ordersService),
			tools.EscalateToHuman(escalator),
		),
		Config: cfg.Chat,
		Sampling: llm.SamplingOptions{
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		},
		Metrics: chatMetrics,
		Logger:  logg,
	}

	if cfg.LLM.Configured() {
		client, err := llm.NewOpenAIClient(cfg.LLM)
		if err != nil {
			return nil, err
		}
		params.Client = client
		params.Summarizer = chat.NewModelSummarizer(client, logg)
	} else {
		logg.Warn(ctx, "llm api key missing, chat replies use the offline fallback")
	}

	return chat.NewService(params)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naijastore/naijastore-api/internal/config"
	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/handler"
	"github.com/naijastore/naijastore-api/internal/infra/cache"
	"github.com/naijastore/naijastore-api/internal/infra/events"
	"github.com/naijastore/naijastore-api/internal/infra/flutterwave"
	"github.com/naijastore/naijastore-api/internal/infra/memory"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/infra/postgres"
	"github.com/naijastore/naijastore-api/internal/infra/resilience"
	"github.com/naijastore/naijastore-api/internal/infra/supabase"
	"github.com/naijastore/naijastore-api/internal/port"
	"github.com/naijastore/naijastore-api/internal/service"
	"github.com/naijastore/naijastore-api/internal/session"

	"go.uber.org/zap"
)

// authUnavailable answers auth routes when Supabase is not configured.
type authUnavailable struct{}

var errAuthNotConfigured = &domain.ErrExternalService{Service: "supabase-auth", Err: errors.New("auth is not configured")}

func (authUnavailable) SignUp(context.Context, *domain.SignupRequest) (*domain.AuthSession, error) {
	return nil, errAuthNotConfigured
}

func (authUnavailable) SignIn(context.Context, string, string) (*domain.AuthSession, error) {
	return nil, errAuthNotConfigured
}

func (authUnavailable) Refresh(context.Context, string) (*domain.AuthSession, error) {
	return nil, errAuthNotConfigured
}

func (authUnavailable) SignOut(context.Context, string) error { return errAuthNotConfigured }

func (authUnavailable) GetUser(context.Context, string) (*domain.AuthUser, error) {
	return nil, errAuthNotConfigured
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("supabase", cfg.SupabaseURL != ""),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
		zap.Strings("cors_allowed_origins", cfg.CORSAllowedOrigins),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("currency", cfg.Currency),
		zap.Float64("shipping_fee", cfg.ShippingFee),
		zap.Float64("free_shipping_threshold", cfg.FreeShippingThreshold),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "naijastore-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	appCache := cache.New[any](cfg.CacheTTL)
	defer appCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Stores ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	upstreams := map[string]handler.Pinger{}

	var (
		catalogStore port.CatalogStore
		cartStore    port.CartStore
		orderStore   port.OrderStore
		addressStore port.AddressStore
		profileStore port.ProfileStore
		authProvider port.AuthProvider = authUnavailable{}
	)

	if cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		catalogStore, cartStore, orderStore, addressStore, profileStore = sb, sb, sb, sb, sb
		authProvider = sb
		upstreams["supabase"] = sb
	} else {
		logger.Warn("SUPABASE_URL not set: using in-memory store, auth routes unavailable")
		mem := memory.New()
		catalogStore, cartStore, orderStore, addressStore, profileStore = mem, mem, mem, mem, mem
		upstreams["memory"] = mem
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		logger.Info("orders and addresses use direct Postgres transactions")
		orderStore, addressStore = pg, pg
		upstreams["postgres"] = pg
	}

	// --- Payments ---
	if cfg.FlutterwaveSecretKey == "" {
		logger.Warn("FLUTTERWAVE_SECRET_KEY not set: payment initialization will fail")
	}
	gateway := flutterwave.NewClient(
		httpClient,
		cfg.FlutterwaveBaseURL,
		cfg.FlutterwaveSecretKey,
		cfg.FlutterwaveSecretHash,
		resilience.NewCircuitBreaker("flutterwave"),
		resilienceCfg,
		logger,
	)

	// --- Events ---
	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		logger.Info("publishing order events to Kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaOrderTopic),
		)
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	// --- Services ---
	policy := domain.ShippingPolicy{
		Currency:              cfg.Currency,
		FlatFee:               cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}
	if cfg.SupabaseJWTSecret == "" {
		logger.Warn("SUPABASE_JWT_SECRET not set: bearer tokens will be rejected")
	}
	sessions := session.NewManager(cfg.SupabaseJWTSecret)

	cartSvc := service.NewCartService(cartStore, catalogStore, policy, metrics, logger)
	paymentSvc := service.NewPaymentService(orderStore, cartStore, catalogStore, gateway, publisher, service.PaymentSettings{
		RedirectURL: cfg.FlutterwaveRedirectURL,
		StoreName:   cfg.StoreName,
		LogoURL:     cfg.StoreLogoURL,
	}, metrics, logger)

	svc := handler.Services{
		Catalog:   service.NewCatalogService(catalogStore, appCache, metrics, logger),
		Cart:      cartSvc,
		Orders:    service.NewOrderService(orderStore, catalogStore, cartStore, addressStore, publisher, policy, metrics, logger),
		Payments:  paymentSvc,
		Auth:      service.NewAuthService(authProvider, profileStore, cartSvc, logger),
		Addresses: service.NewAddressService(addressStore, logger),
		Profiles:  service.NewProfileService(profileStore, appCache, logger),
		Admin:     service.NewAdminService(catalogStore, orderStore, metrics, cfg.Currency, cfg.LowStockThreshold),
		Sessions:  sessions,
		Upstreams: upstreams,
	}

	// --- Router ---
	router := handler.NewRouter(svc, cfg.CORSAllowedOrigins, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

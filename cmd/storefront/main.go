package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/handlers"
	"github.com/cafe-delivery/storefront/internal/payments"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/platform/config"
	"github.com/cafe-delivery/storefront/internal/platform/events"
	"github.com/cafe-delivery/storefront/internal/platform/idempotency"
	"github.com/cafe-delivery/storefront/internal/platform/observability"
	"github.com/cafe-delivery/storefront/internal/platform/secrets"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories"
	"github.com/cafe-delivery/storefront/internal/repositories/kv"
	"github.com/cafe-delivery/storefront/internal/services"
)

const checkoutSweepInterval = time.Minute

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.Session.Ephemeral {
		logger.Warn("session secret not configured; visitor cookies will not survive a restart")
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if closer, ok := backend.(storage.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}
	}()
	visitorStore := storage.NewVisitorScoped(backend)

	cartRepo := kv.NewCartRepository(visitorStore)
	sessionRepo := kv.NewSessionRepository(visitorStore)
	markerRepo := kv.NewPaymentMarkerRepository(visitorStore)
	preferenceRepo := kv.NewPreferenceRepository(visitorStore)

	client, err := apiclient.NewClient(cfg.Backend.BaseURL,
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithTokenStore(sessionRepo),
		apiclient.WithLogger(observability.EventLogger(logger, "apiclient")),
	)
	if err != nil {
		logger.Fatal("failed to initialise backend client", zap.Error(err))
	}

	gateway, err := newPaymentGateway(cfg, client, logger)
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	var publisher services.OrderEventPublisher
	if topic := strings.TrimSpace(cfg.Events.OrderTopic); topic != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		orderPublisher, err := events.NewPubSubOrderPublisher(pubsubClient.Topic(topic))
		if err != nil {
			logger.Fatal("failed to initialise order publisher", zap.Error(err))
		}
		defer orderPublisher.Stop()
		publisher = orderPublisher
	} else {
		logger.Info("order topic not configured; order events disabled")
	}

	money := services.NewMoneyFormatter(cfg.Cafe.Currency, cfg.Cafe.Locale)
	pricing, err := services.NewPricingEngine(services.PricingRules{
		BaseDeliveryFee:  cfg.Pricing.BaseDeliveryFee,
		FreeRadiusMeters: cfg.Pricing.FreeRadiusMeters,
		StepMeters:       cfg.Pricing.StepMeters,
		StepFee:          cfg.Pricing.StepFee,
		TaxRate:          cfg.Pricing.TaxRate,
		OriginLatitude:   cfg.Cafe.Latitude,
		OriginLongitude:  cfg.Cafe.Longitude,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	sessionService, err := services.NewSessionService(services.SessionServiceDeps{
		API:        client,
		Repository: sessionRepo,
		Logger:     observability.EventLogger(logger, "session"),
	})
	if err != nil {
		logger.Fatal("failed to initialise session service", zap.Error(err))
	}

	menuService, err := services.NewMenuService(services.MenuServiceDeps{
		API:    client,
		Logger: observability.EventLogger(logger, "menu"),
	})
	if err != nil {
		logger.Fatal("failed to initialise menu service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: cartRepo,
		Menu:       client,
		Logger:     observability.EventLogger(logger, "cart"),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Gateway:       gateway,
		Markers:       markerRepo,
		Cart:          cartService,
		Orders:        client,
		Currency:      cfg.Payments.Currency,
		PublicBaseURL: cfg.Payments.PublicBaseURL,
		Publisher:     publisher,
		Logger:        observability.EventLogger(logger, "payments"),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	checkoutRegistry := services.NewCheckoutRegistry(services.DefaultCheckoutIdleTTL, time.Now)
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Registry:    checkoutRegistry,
		Cart:        cartService,
		Pricing:     pricing,
		Orders:      client,
		Addresses:   client,
		Sessions:    sessionRepo,
		Payments:    paymentService,
		Money:       money,
		CafeAddress: cfg.Cafe.Address,
		Publisher:   publisher,
		Logger:      observability.EventLogger(logger, "checkout"),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		API: client,
		Contact: services.CafeContact{
			Name:    cfg.Cafe.Name,
			Phone:   cfg.Cafe.Phone,
			Email:   cfg.Cafe.Email,
			Address: cfg.Cafe.Address,
		},
		Money:     money,
		Publisher: publisher,
		Logger:    observability.EventLogger(logger, "orders"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	addressService, err := services.NewAddressService(services.AddressServiceDeps{
		API:    client,
		Logger: observability.EventLogger(logger, "addresses"),
	})
	if err != nil {
		logger.Fatal("failed to initialise address service", zap.Error(err))
	}

	themeService, err := services.NewThemeService(services.ThemeServiceDeps{Repository: preferenceRepo})
	if err != nil {
		logger.Fatal("failed to initialise theme service", zap.Error(err))
	}

	adminService, err := services.NewAdminService(services.AdminServiceDeps{
		API:       client,
		Money:     money,
		Publisher: publisher,
		Logger:    observability.EventLogger(logger, "admin"),
	})
	if err != nil {
		logger.Fatal("failed to initialise admin service", zap.Error(err))
	}

	systemService, err := newSystemService(cfg, client, backend, fetcher, buildInfo)
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	idempotencyMiddleware := idempotency.Middleware(
		idempotency.NewKVStore(backend),
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	var sweepWG sync.WaitGroup
	sweepTicker := time.NewTicker(checkoutSweepInterval)
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-sweepTicker.C:
				if removed := checkoutRegistry.Sweep(); removed > 0 {
					logger.Debug("checkout sessions swept", zap.Int("removed", removed))
				}
			}
		}
	}()

	authenticator := auth.NewAuthenticator(sessionService)

	menuHandlers := handlers.NewMenuHandlers(menuService)
	cartHandlers := handlers.NewCartHandlers(cartService, pricing, money)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, checkoutService, idempotencyMiddleware)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, paymentService, idempotencyMiddleware)
	sessionHandlers := handlers.NewSessionHandlers(sessionService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService)
	addressHandlers := handlers.NewAddressHandlers(authenticator, addressService)
	preferenceHandlers := handlers.NewPreferenceHandlers(themeService)
	adminHandlers := handlers.NewAdminHandlers(authenticator, adminService)

	projectID := strings.TrimSpace(cfg.Telemetry.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		auth.VisitorMiddleware(auth.VisitorConfig{
			CookieName: cfg.Session.CookieName,
			Secret:     []byte(cfg.Session.Secret),
			Secure:     cfg.Session.CookieSecure,
			MaxAge:     cfg.Session.MaxAge,
		}),
		authenticator.Attach,
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithMenuRoutes(menuHandlers.Routes))
	opts = append(opts, handlers.WithCartRoutes(cartHandlers.Routes))
	opts = append(opts, handlers.WithCheckoutRoutes(checkoutHandlers.Routes))
	opts = append(opts, handlers.WithPaymentRoutes(paymentHandlers.Routes))
	opts = append(opts, handlers.WithAuthRoutes(sessionHandlers.Routes))
	opts = append(opts, handlers.WithOrderRoutes(orderHandlers.Routes))
	opts = append(opts, handlers.WithAddressRoutes(addressHandlers.Routes))
	opts = append(opts, handlers.WithPreferenceRoutes(preferenceHandlers.Routes))
	opts = append(opts, handlers.WithAdminRoutes(adminHandlers.Routes))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening",
			zap.String("storage", cfg.Storage.Driver),
			zap.String("payments", gateway.Provider()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepTicker.Stop()
	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["STOREFRONT_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["STOREFRONT_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// requiredSecretNames lists the secrets that must resolve before the server starts. Local runs
// fall back to an ephemeral session secret.
func requiredSecretNames(env map[string]string) []string {
	var names []string
	environment := strings.ToLower(strings.TrimSpace(env["STOREFRONT_ENVIRONMENT"]))
	if environment != "" && environment != "local" {
		names = append(names, "Session.Secret")
	}
	if strings.EqualFold(strings.TrimSpace(env["STOREFRONT_PAYMENTS_PROVIDER"]), config.PaymentsProviderStripe) {
		names = append(names, "Payments.StripeAPIKey")
	}
	if strings.EqualFold(strings.TrimSpace(env["STOREFRONT_STORAGE_DRIVER"]), config.StorageDriverRedis) {
		names = append(names, "Storage.RedisURL")
	}
	return names
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	project := lookup("STOREFRONT_SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("STOREFRONT_FIRESTORE_PROJECT_ID")
	}
	if project == "" {
		project = lookup("GOOGLE_CLOUD_PROJECT")
	}
	fallbackPath := lookup("STOREFRONT_SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newPaymentGateway(cfg config.Config, client *apiclient.Client, logger *zap.Logger) (*payments.Gateway, error) {
	providers := map[string]payments.Provider{
		config.PaymentsProviderBackend: payments.NewBackendProvider(client),
	}
	if strings.TrimSpace(cfg.Payments.StripeAPIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Payments.StripeAPIKey,
			Logger: payments.StripeLogger(observability.EventLogger(logger, "stripe")),
		})
		if err != nil {
			return nil, err
		}
		providers[config.PaymentsProviderStripe] = stripeProvider
	}
	return payments.NewGateway(cfg.Payments.Provider, providers)
}

func newSystemService(cfg config.Config, client *apiclient.Client, backend storage.Storage, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:    "backendApi",
			Timeout: 2 * time.Second,
			Check:   client.Ping,
		},
	}
	if pinger, ok := backend.(storage.Pinger); ok {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "storage:" + cfg.Storage.Driver,
			Timeout: 1500 * time.Millisecond,
			Check:   pinger.Ping,
		})
	}
	var optional []string
	if fetcher != nil && strings.TrimSpace(cfg.Secrets.ProjectID) != "" {
		optional = append(optional, "secretManager")
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || errors.Is(err, secrets.ErrNotFound) {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
		Optional:         optional,
	})
}

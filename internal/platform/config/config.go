package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultEnvironment         = "local"
	defaultBackendBaseURL      = "http://localhost:8000/api"
	defaultBackendTimeout      = 8 * time.Second
	defaultCafeName            = "Café"
	defaultCafeLatitude        = 9.0320
	defaultCafeLongitude       = 38.7469
	defaultCafeAddress         = "Addis Ababa, Ethiopia"
	defaultCafeCurrency        = "ETB"
	defaultCafeLocale          = "en"
	defaultBaseDeliveryFee     = "2.99"
	defaultFreeRadiusMeters    = 500
	defaultStepMeters          = 100
	defaultStepFee             = "1"
	defaultTaxRate             = "0.08"
	defaultStorageDriver       = StorageDriverMemory
	defaultStorageFilePath     = ".storefront-data.json"
	defaultStorageKeyPrefix    = "storefront"
	defaultStorageTTL          = 30 * 24 * time.Hour
	defaultFirestoreCollection = "storefront_visitors"
	defaultSessionCookie       = "cafe_visitor"
	defaultSessionMaxAge       = 365 * 24 * time.Hour
	defaultPaymentsProvider    = PaymentsProviderBackend
	defaultPublicBaseURL       = "http://localhost:5173"
	defaultSecretsFallbackFile = ".secrets.local"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
)

// Storage drivers understood by StorageConfig.Driver.
const (
	StorageDriverMemory    = "memory"
	StorageDriverFile      = "file"
	StorageDriverRedis     = "redis"
	StorageDriverFirestore = "firestore"
)

// Payment providers understood by PaymentsConfig.Provider.
const (
	PaymentsProviderBackend = "backend"
	PaymentsProviderStripe  = "stripe"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Backend     BackendConfig
	Cafe        CafeConfig
	Pricing     PricingConfig
	Storage     StorageConfig
	Firestore   FirestoreConfig
	Session     SessionConfig
	Payments    PaymentsConfig
	Events      EventsConfig
	Secrets     SecretsConfig
	Idempotency IdempotencyConfig
	Telemetry   TelemetryConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the café REST API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CafeConfig describes the café itself. Values may be overridden by the YAML settings file.
type CafeConfig struct {
	Name         string
	Latitude     float64
	Longitude    float64
	Address      string
	Phone        string
	Email        string
	Currency     string
	Locale       string
	SettingsFile string
}

// PricingConfig holds the delivery fee schedule and tax rate.
type PricingConfig struct {
	BaseDeliveryFee  decimal.Decimal
	FreeRadiusMeters int
	StepMeters       int
	StepFee          decimal.Decimal
	TaxRate          decimal.Decimal
}

// StorageConfig selects the durable per-visitor storage backend.
type StorageConfig struct {
	Driver    string
	FilePath  string
	RedisURL  string
	KeyPrefix string
	TTL       time.Duration
}

// FirestoreConfig stores database parameters for the firestore storage driver.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	Collection   string
}

// SessionConfig controls the signed visitor cookie.
type SessionConfig struct {
	CookieName   string
	Secret       string
	CookieSecure bool
	MaxAge       time.Duration
	// Ephemeral is set when a random secret was generated for local development.
	Ephemeral bool
}

// PaymentsConfig configures the hosted checkout handoff.
type PaymentsConfig struct {
	Provider      string
	Currency      string
	PublicBaseURL string
	StripeAPIKey  string
}

// EventsConfig configures the optional Pub/Sub order event publisher.
type EventsConfig struct {
	ProjectID  string
	OrderTopic string
}

// SecretsConfig configures Secret Manager lookups for secret:// references.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// TelemetryConfig carries the project used to build Cloud Trace resource names in logs.
type TelemetryConfig struct {
	ProjectID string
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, the café settings file, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(stringWithDefault(lookup, "STOREFRONT_BACKEND_BASE_URL", defaultBackendBaseURL), "/"),
			Timeout: durationWithDefault(lookup, "STOREFRONT_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Cafe: CafeConfig{
			Name:         stringWithDefault(lookup, "STOREFRONT_CAFE_NAME", defaultCafeName),
			Latitude:     floatWithDefault(lookup, "STOREFRONT_CAFE_LATITUDE", defaultCafeLatitude),
			Longitude:    floatWithDefault(lookup, "STOREFRONT_CAFE_LONGITUDE", defaultCafeLongitude),
			Address:      stringWithDefault(lookup, "STOREFRONT_CAFE_ADDRESS", defaultCafeAddress),
			Phone:        stringWithDefault(lookup, "STOREFRONT_CAFE_PHONE", ""),
			Email:        stringWithDefault(lookup, "STOREFRONT_CAFE_EMAIL", ""),
			Currency:     strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_CAFE_CURRENCY", defaultCafeCurrency)),
			Locale:       stringWithDefault(lookup, "STOREFRONT_CAFE_LOCALE", defaultCafeLocale),
			SettingsFile: stringWithDefault(lookup, "STOREFRONT_CAFE_SETTINGS_FILE", ""),
		},
		Pricing: PricingConfig{
			BaseDeliveryFee:  decimalWithDefault(lookup, "STOREFRONT_PRICING_BASE_DELIVERY_FEE", defaultBaseDeliveryFee),
			FreeRadiusMeters: intWithDefault(lookup, "STOREFRONT_PRICING_FREE_RADIUS_METERS", defaultFreeRadiusMeters),
			StepMeters:       intWithDefault(lookup, "STOREFRONT_PRICING_STEP_METERS", defaultStepMeters),
			StepFee:          decimalWithDefault(lookup, "STOREFRONT_PRICING_STEP_FEE", defaultStepFee),
			TaxRate:          decimalWithDefault(lookup, "STOREFRONT_PRICING_TAX_RATE", defaultTaxRate),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(stringWithDefault(lookup, "STOREFRONT_STORAGE_DRIVER", defaultStorageDriver)),
			FilePath:  stringWithDefault(lookup, "STOREFRONT_STORAGE_FILE_PATH", defaultStorageFilePath),
			RedisURL:  stringWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_URL", ""),
			KeyPrefix: stringWithDefault(lookup, "STOREFRONT_STORAGE_KEY_PREFIX", defaultStorageKeyPrefix),
			TTL:       durationWithDefault(lookup, "STOREFRONT_STORAGE_TTL", defaultStorageTTL),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "STOREFRONT_FIRESTORE_EMULATOR_HOST", ""),
			Collection:   stringWithDefault(lookup, "STOREFRONT_FIRESTORE_COLLECTION", defaultFirestoreCollection),
		},
		Session: SessionConfig{
			CookieName:   stringWithDefault(lookup, "STOREFRONT_SESSION_COOKIE_NAME", defaultSessionCookie),
			Secret:       stringWithDefault(lookup, "STOREFRONT_SESSION_SECRET", ""),
			CookieSecure: boolWithDefault(lookup, "STOREFRONT_SESSION_COOKIE_SECURE", false),
			MaxAge:       durationWithDefault(lookup, "STOREFRONT_SESSION_MAX_AGE", defaultSessionMaxAge),
		},
		Payments: PaymentsConfig{
			Provider:      strings.ToLower(stringWithDefault(lookup, "STOREFRONT_PAYMENTS_PROVIDER", defaultPaymentsProvider)),
			Currency:      strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_PAYMENTS_CURRENCY", "")),
			PublicBaseURL: strings.TrimRight(stringWithDefault(lookup, "STOREFRONT_PAYMENTS_PUBLIC_BASE_URL", defaultPublicBaseURL), "/"),
			StripeAPIKey:  stringWithDefault(lookup, "STOREFRONT_PAYMENTS_STRIPE_API_KEY", ""),
		},
		Events: EventsConfig{
			ProjectID:  stringWithDefault(lookup, "STOREFRONT_EVENTS_PROJECT_ID", ""),
			OrderTopic: stringWithDefault(lookup, "STOREFRONT_EVENTS_ORDER_TOPIC", ""),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "STOREFRONT_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Telemetry: TelemetryConfig{
			ProjectID: stringWithDefault(lookup, "STOREFRONT_TELEMETRY_PROJECT_ID", ""),
		},
	}

	if cfg.Cafe.SettingsFile != "" {
		if err := applyCafeSettings(&cfg.Cafe, cfg.Cafe.SettingsFile); err != nil {
			return Config{}, err
		}
	}

	// Payments default to the café currency.
	if cfg.Payments.Currency == "" {
		cfg.Payments.Currency = cfg.Cafe.Currency
	}
	// Google projects fall back to one another so a single project id configures everything.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = firstNonEmpty(cfg.Telemetry.ProjectID, stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", ""))
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Session.Secret", &cfg.Session.Secret},
		{"Payments.StripeAPIKey", &cfg.Payments.StripeAPIKey},
		{"Storage.RedisURL", &cfg.Storage.RedisURL},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		resolvedSecrets[target.name] = strings.TrimSpace(resolved)
	}

	if cfg.Session.Secret == "" && cfg.Environment == defaultEnvironment {
		secret, err := ephemeralSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.Session.Secret = secret
		cfg.Session.Ephemeral = true
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "Backend.BaseURL")
	}
	if cfg.Backend.Timeout <= 0 {
		missing = append(missing, "Backend.Timeout")
	}
	if cfg.Cafe.Latitude < -90 || cfg.Cafe.Latitude > 90 {
		missing = append(missing, "Cafe.Latitude")
	}
	if cfg.Cafe.Longitude < -180 || cfg.Cafe.Longitude > 180 {
		missing = append(missing, "Cafe.Longitude")
	}
	if cfg.Pricing.BaseDeliveryFee.IsNegative() {
		missing = append(missing, "Pricing.BaseDeliveryFee")
	}
	if cfg.Pricing.StepFee.IsNegative() {
		missing = append(missing, "Pricing.StepFee")
	}
	if cfg.Pricing.TaxRate.IsNegative() {
		missing = append(missing, "Pricing.TaxRate")
	}
	if cfg.Pricing.FreeRadiusMeters < 0 {
		missing = append(missing, "Pricing.FreeRadiusMeters")
	}
	if cfg.Pricing.StepMeters <= 0 {
		missing = append(missing, "Pricing.StepMeters")
	}

	switch cfg.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(cfg.Storage.FilePath) == "" {
			missing = append(missing, "Storage.FilePath")
		}
	case StorageDriverRedis:
		if strings.TrimSpace(cfg.Storage.RedisURL) == "" {
			missing = append(missing, "Storage.RedisURL")
		}
	case StorageDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if cfg.Firestore.Collection == "" {
			missing = append(missing, "Firestore.Collection")
		}
	default:
		missing = append(missing, "Storage.Driver")
	}

	if strings.TrimSpace(cfg.Session.Secret) == "" {
		missing = append(missing, "Session.Secret")
	}

	switch cfg.Payments.Provider {
	case PaymentsProviderBackend:
	case PaymentsProviderStripe:
		if cfg.Payments.StripeAPIKey == "" {
			missing = append(missing, "Payments.StripeAPIKey")
		}
	default:
		missing = append(missing, "Payments.Provider")
	}
	if u, err := url.Parse(cfg.Payments.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "Payments.PublicBaseURL")
	}

	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

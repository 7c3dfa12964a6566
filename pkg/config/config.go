package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Pricing      PricingConfig
	Checkout     CheckoutConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Pricing.TaxRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHECKOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"CHECKOUT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHECKOUT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHECKOUT_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"CHECKOUT_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CHECKOUT_DB_DSN"`
	Driver string `envconfig:"CHECKOUT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHECKOUT_DB_HOST"`
	LegacyPort     int    `envconfig:"CHECKOUT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHECKOUT_DB_USER"`
	LegacyPassword string `envconfig:"CHECKOUT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHECKOUT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHECKOUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHECKOUT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHECKOUT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHECKOUT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHECKOUT_REDIS_ADDR"`
	Password     string        `envconfig:"CHECKOUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHECKOUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHECKOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHECKOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHECKOUT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHECKOUT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHECKOUT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CHECKOUT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHECKOUT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHECKOUT_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CHECKOUT_STRIPE_API_KEY"`
	Secret string `envconfig:"CHECKOUT_STRIPE_SECRET"`
	Env    string `envconfig:"CHECKOUT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PricingConfig struct {
	Currency                   string `envconfig:"CHECKOUT_PRICING_CURRENCY" default:"usd"`
	FreeShippingThresholdCents int64  `envconfig:"CHECKOUT_PRICING_FREE_SHIPPING_THRESHOLD_CENTS" default:"5000"`
	FlatShippingCents          int64  `envconfig:"CHECKOUT_PRICING_FLAT_SHIPPING_CENTS" default:"599"`
	TaxRatePercent             string `envconfig:"CHECKOUT_PRICING_TAX_RATE_PERCENT" default:"8.25"`
}

// TaxRate parses TaxRatePercent. An empty value means no tax.
func (p PricingConfig) TaxRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(p.TaxRatePercent)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvPricingTaxRate, raw, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be non-negative", EnvPricingTaxRate)
	}
	return rate, nil
}

type CheckoutConfig struct {
	IdempotencyTTL        time.Duration `envconfig:"CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"CHECKOUT_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	PendingOrderTTL       time.Duration `envconfig:"CHECKOUT_PENDING_ORDER_TTL" default:"72h"`
	OrderNumberPrefix     string        `envconfig:"CHECKOUT_ORDER_NUMBER_PREFIX" default:"ORD"`
	MaxItemQuantity       int           `envconfig:"CHECKOUT_MAX_ITEM_QUANTITY" default:"99"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CHECKOUT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CHECKOUT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CHECKOUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHECKOUT_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"CHECKOUT_GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON        string `envconfig:"CHECKOUT_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"CHECKOUT_PUBSUB_ORDERS_TOPIC" default:"checkout-order-events"`
	OrdersSubscription string `envconfig:"CHECKOUT_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval                time.Duration `envconfig:"CHECKOUT_CRON_INTERVAL" default:"1m"`
	LockTTL                 time.Duration `envconfig:"CHECKOUT_CRON_LOCK_TTL" default:"5m"`
	PendingEventMaxAttempts int           `envconfig:"CHECKOUT_CRON_PENDING_EVENT_MAX_ATTEMPTS" default:"20"`
	BatchSize               int           `envconfig:"CHECKOUT_CRON_BATCH_SIZE" default:"100"`
	OutboxRetention         time.Duration `envconfig:"CHECKOUT_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

const (
	EnvPrefix = "CHECKOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "CHECKOUT_APP_ENV"
	EnvPort     = "CHECKOUT_APP_PORT"
	EnvLogLevel = "CHECKOUT_LOG_LEVEL"

	EnvDBDSN  = "CHECKOUT_DB_DSN"
	EnvDBHost = "CHECKOUT_DB_HOST"
	EnvDBPort = "CHECKOUT_DB_PORT"
	EnvDBUser = "CHECKOUT_DB_USER"
	EnvDBPass = "CHECKOUT_DB_PASSWORD"
	EnvDBName = "CHECKOUT_DB_NAME"

	EnvRedisURL = "CHECKOUT_REDIS_URL"

	EnvJWTSecret  = "CHECKOUT_JWT_SECRET"
	EnvJWTIssuer  = "CHECKOUT_JWT_ISSUER"
	EnvJWTExpMins = "CHECKOUT_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey = "CHECKOUT_STRIPE_API_KEY"
	EnvStripeSecret = "CHECKOUT_STRIPE_SECRET"

	EnvPricingFreeShipping = "CHECKOUT_PRICING_FREE_SHIPPING_THRESHOLD_CENTS"
	EnvPricingFlatShipping = "CHECKOUT_PRICING_FLAT_SHIPPING_CENTS"
	EnvPricingTaxRate      = "CHECKOUT_PRICING_TAX_RATE_PERCENT"

	EnvPendingOrderTTL = "CHECKOUT_PENDING_ORDER_TTL"

	EnvGCPProjectID      = "CHECKOUT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "CHECKOUT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "CHECKOUT_PUBSUB_ORDERS_SUBSCRIPTION"

	EnvCronInterval = "CHECKOUT_CRON_INTERVAL"
)

// legacyDBEnvVars must all be set when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

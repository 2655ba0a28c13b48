package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PricingSourceEnv = "env"
	PricingSourceDB  = "db"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:storefront.db?cache=shared&_fk=1"
)

const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat = "STOREFRONT_LOG_FORMAT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvShopifyDomain    = "STOREFRONT_SHOPIFY_STORE_DOMAIN"
	EnvShopifyToken     = "STOREFRONT_SHOPIFY_STOREFRONT_TOKEN"
	EnvShopifyVariantID = "STOREFRONT_SHOPIFY_BUNDLE_VARIANT_ID"
	EnvShopifyTimeout   = "STOREFRONT_SHOPIFY_TIMEOUT"

	EnvPricingSource    = "STOREFRONT_PRICING_SOURCE"
	EnvPricingTiers     = "STOREFRONT_PRICING_TIERS"
	EnvPricingBasePrice = "STOREFRONT_PRICING_BASE_PRICE"

	EnvCartMaxQuantity    = "STOREFRONT_CART_MAX_QUANTITY"
	EnvCartDebounceWindow = "STOREFRONT_CART_DEBOUNCE_WINDOW"
	EnvCartIdempotencyTTL = "STOREFRONT_CART_IDEMPOTENCY_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Shopify      ShopifyConfig
	Pricing      PricingConfig
	Cart         CartConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
	}
	if cfg.Pricing.UsesDB() || cfg.FeatureFlags.AutoMigrate {
		if err := cfg.DB.EnsureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every out-of-range value at once rather than stopping at
// the first.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		check(false, "%s must be json or console, got %q", EnvLogFormat, c.App.LogFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.Pricing.Source)) {
	case PricingSourceEnv, PricingSourceDB:
	default:
		check(false, "%s must be env or db, got %q", EnvPricingSource, c.Pricing.Source)
	}
	check(c.Cart.MaxQuantity > 0, "%s must be positive", EnvCartMaxQuantity)
	check(c.Cart.DebounceWindow >= 0, "%s must not be negative", EnvCartDebounceWindow)
	check(c.Cart.IdempotencyTTL >= 0, "%s must not be negative", EnvCartIdempotencyTTL)
	check(c.RateLimit.CartIPLimit >= 0 && c.RateLimit.CartSessionLimit >= 0, "rate limits must not be negative")
	check(c.Shopify.Timeout > 0, "%s must be positive", EnvShopifyTimeout)
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"STOREFRONT_REDIS_KEY_PREFIX" default:"sf"`
}

// ShopifyConfig points at the Storefront GraphQL API. Missing values are not a
// load error: the cart surface reports itself unavailable instead.
type ShopifyConfig struct {
	StoreDomain     string        `envconfig:"STOREFRONT_SHOPIFY_STORE_DOMAIN"`
	AccessToken     string        `envconfig:"STOREFRONT_SHOPIFY_STOREFRONT_TOKEN"`
	APIVersion      string        `envconfig:"STOREFRONT_SHOPIFY_API_VERSION" default:"2024-10"`
	Timeout         time.Duration `envconfig:"STOREFRONT_SHOPIFY_TIMEOUT" default:"5s"`
	BundleVariantID string        `envconfig:"STOREFRONT_SHOPIFY_BUNDLE_VARIANT_ID"`
	MaxLinesFetched int           `envconfig:"STOREFRONT_SHOPIFY_MAX_LINES" default:"50"`
}

// Configured reports whether every value the cart needs is present.
func (s ShopifyConfig) Configured() bool {
	return s.Domain() != "" && strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.BundleVariantID) != ""
}

// Domain returns the store domain without scheme or trailing slash.
func (s ShopifyConfig) Domain() string {
	domain := strings.TrimSpace(s.StoreDomain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

// Endpoint returns the Storefront GraphQL URL.
func (s ShopifyConfig) Endpoint() string {
	return fmt.Sprintf("https://%s/api/%s/graphql.json", s.Domain(), s.APIVersion)
}

type PricingConfig struct {
	Source                string `envconfig:"STOREFRONT_PRICING_SOURCE" default:"env"`
	BasePrice             string `envconfig:"STOREFRONT_PRICING_BASE_PRICE" default:"5.60"`
	FreeShippingThreshold int    `envconfig:"STOREFRONT_PRICING_FREE_SHIPPING_THRESHOLD" default:"5"`
	MinPerUnitPrice       string `envconfig:"STOREFRONT_PRICING_MIN_PER_UNIT_PRICE" default:"4.25"`
	Tiers                 string `envconfig:"STOREFRONT_PRICING_TIERS" default:"1:5.60,4:5.49,5:5.17,8:4.64,12:4.25"`
	Currency              string `envconfig:"STOREFRONT_PRICING_CURRENCY" default:"USD"`
}

// UsesDB reports whether the tier schedule is read from the database.
func (p PricingConfig) UsesDB() bool {
	return strings.EqualFold(strings.TrimSpace(p.Source), PricingSourceDB)
}

type CartConfig struct {
	MaxQuantity    int           `envconfig:"STOREFRONT_CART_MAX_QUANTITY" default:"99"`
	DebounceWindow time.Duration `envconfig:"STOREFRONT_CART_DEBOUNCE_WINDOW" default:"300ms"`
	SessionTTL     time.Duration `envconfig:"STOREFRONT_CART_SESSION_TTL" default:"240h"`
	CartCookieName string        `envconfig:"STOREFRONT_CART_COOKIE_NAME" default:"sf_cart_id"`
	SessionCookie  string        `envconfig:"STOREFRONT_CART_SESSION_COOKIE_NAME" default:"sf_session"`
	CookieSecure   bool          `envconfig:"STOREFRONT_CART_COOKIE_SECURE" default:"true"`
	CookieMaxAge   time.Duration `envconfig:"STOREFRONT_CART_COOKIE_MAX_AGE" default:"240h"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_CART_IDEMPOTENCY_TTL" default:"24h"`
}

type RateLimitConfig struct {
	CartWindow       time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_CART_WINDOW" default:"1m"`
	CartIPLimit      int           `envconfig:"STOREFRONT_RATE_LIMIT_CART_IP_LIMIT" default:"120"`
	CartSessionLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CART_SESSION_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// Origins splits the configured origins list.
func (c CORSConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// EnsureDSN builds the DSN from the legacy host/user/name variables when no
// DSN is set.
func (db *DBConfig) EnsureDSN() error {
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

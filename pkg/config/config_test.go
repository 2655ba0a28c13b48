package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if got := cfg.Shopify.Timeout; got != 5*time.Second {
		t.Fatalf("expected default shopify timeout 5s, got %v", got)
	}
	if got := cfg.Cart.DebounceWindow; got != 300*time.Millisecond {
		t.Fatalf("expected default debounce 300ms, got %v", got)
	}
	if cfg.Cart.MaxQuantity != 99 {
		t.Fatalf("expected default max quantity 99, got %d", cfg.Cart.MaxQuantity)
	}
	if cfg.Pricing.Tiers != "1:5.60,4:5.49,5:5.17,8:4.64,12:4.25" {
		t.Fatalf("unexpected default tiers %q", cfg.Pricing.Tiers)
	}
	if cfg.Pricing.UsesDB() {
		t.Fatalf("default pricing source should be env")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_DBSourceRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPricingSource, "db")

	if _, err := Load(); err == nil {
		t.Fatal("expected db pricing source without DSN to fail")
	}

	t.Setenv(EnvDBHost, "localhost")
	t.Setenv(EnvDBUser, "storefront")
	t.Setenv(EnvDBName, "storefront")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.DSN != "postgres://storefront@localhost:5432/storefront?sslmode=disable" {
		t.Fatalf("unexpected legacy DSN %q", cfg.DB.DSN)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestShopifyConfigHelpers(t *testing.T) {
	cfg := ShopifyConfig{
		StoreDomain:     "https://sweetdrop.myshopify.com/",
		AccessToken:     "token",
		APIVersion:      "2024-10",
		BundleVariantID: "gid://shopify/ProductVariant/1",
	}
	if !cfg.Configured() {
		t.Fatalf("expected configured")
	}
	if got := cfg.Endpoint(); got != "https://sweetdrop.myshopify.com/api/2024-10/graphql.json" {
		t.Fatalf("unexpected endpoint %q", got)
	}

	cfg.AccessToken = " "
	if cfg.Configured() {
		t.Fatalf("blank token must not count as configured")
	}
}

func TestCORSOrigins(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: "http://localhost:3000, https://sweetdrop.com,,"}
	origins := cfg.Origins()
	if len(origins) != 2 || origins[1] != "https://sweetdrop.com" {
		t.Fatalf("unexpected origins %v", origins)
	}
}

func TestLoad_SQLiteFlagSelectsDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPricingSource, "db")
	t.Setenv("STOREFRONT_USE_SQLITE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.Driver != DBDriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		t.Fatal("expected default sqlite DSN")
	}
}

func TestLoad_ValidateCollectsEveryProblem(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvLogFormat, "xml")
	t.Setenv(EnvPricingSource, "sheets")
	t.Setenv(EnvCartMaxQuantity, "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
	for _, name := range []string{EnvLogFormat, EnvPricingSource, EnvCartMaxQuantity} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in %v", name, err)
		}
	}
}

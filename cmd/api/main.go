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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/sweetdrop/storefront-api/api/controllers"
	"github.com/sweetdrop/storefront-api/api/routes"
	"github.com/sweetdrop/storefront-api/internal/cart"
	"github.com/sweetdrop/storefront-api/internal/pricing"
	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/db"
	"github.com/sweetdrop/storefront-api/pkg/env"
	"github.com/sweetdrop/storefront-api/pkg/instance"
	"github.com/sweetdrop/storefront-api/pkg/logger"
	"github.com/sweetdrop/storefront-api/pkg/metrics"
	"github.com/sweetdrop/storefront-api/pkg/migrate"
	"github.com/sweetdrop/storefront-api/pkg/redis"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

const shutdownTimeout = 10 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	closers = append(closers, redisClient.Close)

	readiness := []controllers.ReadinessCheck{{Name: "redis", Pinger: redisClient}}

	var loader pricing.TableLoader
	if cfg.Pricing.UsesDB() || cfg.FeatureFlags.AutoMigrate {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbClient.Close)
		readiness = append(readiness, controllers.ReadinessCheck{Name: "db", Pinger: dbClient})

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		loader = pricing.NewRepository(dbClient.DB())
	}

	table, err := pricing.LoadTable(ctx, cfg.Pricing, loader)
	if err != nil {
		logg.Error(logg.WithField(ctx, "pricing_source", cfg.Pricing.Source), "failed to load pricing table", err)
		os.Exit(1)
	}
	engine := pricing.NewEngine(table)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)

	var backend cart.Backend
	if cfg.Shopify.Configured() {
		client, err := shopify.NewClient(cfg.Shopify, logg, shopify.WithObserver(cartMetrics))
		if err != nil {
			logg.Error(ctx, "failed to build shopify client", err)
			os.Exit(1)
		}
		backend = client
	} else {
		logg.Warn(ctx, "shopify storefront not configured; cart routes will report unavailable")
	}

	cartService, err := cart.NewService(cart.ServiceConfig{
		Backend:        backend,
		VariantID:      cfg.Shopify.BundleVariantID,
		MaxQuantity:    cfg.Cart.MaxQuantity,
		DebounceWindow: cfg.Cart.DebounceWindow,
		Pricer:         engine,
		Sequencer:      cart.NewRedisSequencer(redisClient, cfg.Cart.SessionTTL),
		Recorder:       cartMetrics,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	// PORT is injected by the platform and wins over the configured port.
	addr := ":" + env.Get("PORT", cfg.App.Port)
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"instance":       instance.GetID(),
		"addr":           addr,
		"pricing_source": cfg.Pricing.Source,
		"cart_available": cartService.Available(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			Redis:        redisClient,
			RateLimiter:  redisClient,
			SessionStore: cart.NewRedisSessionStore(redisClient, cfg.Cart.SessionTTL),
			Pricing:      engine,
			Cart:         cartService,
			Quotes:       cartMetrics,
			Gatherer:     registry,
			Readiness:    readiness,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := []error{server.Shutdown(shutdownCtx)}
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	if err := multierr.Combine(errs...); err != nil {
		logg.Error(context.Background(), "error during shutdown", err)
		exitCode = 1
	}
	logg.Info(context.Background(), "api server exited")
	os.Exit(exitCode)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/sweetdrop/storefront-api/internal/pricing"
	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/db"
	"github.com/sweetdrop/storefront-api/pkg/db/models"
	"github.com/sweetdrop/storefront-api/pkg/logger"
	"github.com/sweetdrop/storefront-api/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|sync-pricing")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; empty uses the migrations built into the binary")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	// file-only commands run before config so they work on a bare checkout
	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})

	requireResource(ctx, logg, "database config", cfg.DB.EnsureDSN())
	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	requireResource(ctx, logg, "sql database", err)
	dialect, err := migrate.Dialect(cfg.DB.Driver)
	requireResource(ctx, logg, "goose dialect", err)
	if *cmd == "sync-pricing" {
		requireResource(ctx, logg, "pricing sync", syncPricing(ctx, cfg, dbClient))
		logg.Info(ctx, "pricing schedule synced from environment")
		return
	}

	migrator, err := migrate.New(sqlDB, dialect, *dir)
	requireResource(ctx, logg, "migrations", err)

	switch *cmd {
	case "up":
		results, err := migrator.Up(ctx)
		requireResource(ctx, logg, "goose up", err)
		printResults(results...)
	case "down":
		result, err := migrator.Down(ctx)
		requireResource(ctx, logg, "goose down", err)
		printResults(result)
	case "status":
		status, err := migrator.Status(ctx)
		requireResource(ctx, logg, "goose status", err)
		printStatus(status)
	case "version":
		target, err := strconv.ParseInt(*version, 10, 64)
		if err != nil {
			exitf("invalid -version %q (expected YYYYMMDDHHMMSS)", *version)
		}
		results, err := migrator.To(ctx, target)
		requireResource(ctx, logg, "goose version", err)
		printResults(results...)
	default:
		exitf("unknown -cmd value: %s", *cmd)
	}
	logg.Info(ctx, "migrate finished")
}

// syncPricing copies the env-configured schedule into the default database
// schedule so STOREFRONT_PRICING_SOURCE=db serves the same prices.
func syncPricing(ctx context.Context, cfg *config.Config, client *db.Client) error {
	table, err := pricing.FromConfig(cfg.Pricing)
	if err != nil {
		return err
	}
	repo := pricing.NewRepository(client.DB())
	return client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.WithTx(tx).SaveTable(ctx, models.DefaultPricingScheduleID, cfg.Pricing.Currency, table)
	})
}

func printResults(results ...*goose.MigrationResult) {
	if len(results) == 0 {
		fmt.Println("no migrations to run")
		return
	}
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fmt.Printf("%-4s %d %s (%s)\n", res.Direction, res.Source.Version, res.Source.Path, res.Duration.Round(time.Millisecond))
	}
}

func printStatus(status []*goose.MigrationStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range status {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	_ = w.Flush()
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package migrate

import (
	"context"
	"fmt"

	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/db"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot when auto-migrate is
// on and the process runs in dev or against sqlite. Production schemas move
// only through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() && !cfg.FeatureFlags.UseSQLite {
		logg.Warn(ctx, "auto-migrate ignored outside dev; run cmd/migrate instead")
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect, err := Dialect(cfg.DB.Driver)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": string(dialect)})
	results, err := UpEmbedded(ctx, sqlDB, dialect)
	if err != nil {
		return err
	}
	for _, res := range results {
		logg.Debug(logg.WithFields(ctx, map[string]any{
			"version":  res.Source.Version,
			"duration": res.Duration.String(),
		}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(results)), "embedded migrations up to date")
	return nil
}

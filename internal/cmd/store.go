package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/config"
	"github.com/wishmail/wishmail/internal/core/store"
	"github.com/wishmail/wishmail/internal/observability"
)

// openStore opens and migrates the database, then seeds the built-in wishes.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	seeded, err := db.SeedDefaultWishes(ctx, time.Now())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if seeded.Added > 0 {
		observability.Logger().Debug("Seeded default wishes", zap.Int("added", seeded.Added))
	}

	return db, nil
}

// openStoreFromConfig loads configuration and opens the store.
func openStoreFromConfig(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

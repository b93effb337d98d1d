package commands

import (
	"context"
	"database/sql"
	"fmt"

	"editorial/api/internal/bootstrap"
	"editorial/api/internal/config"
)

type migrationRunner struct {
	db *sql.DB
}

func withDatabase(fn func(ctx context.Context, cfg config.Config, run migrationRunner) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("migrations need the postgres store driver, got %q", cfg.StoreDriver)
	}
	ctx := context.Background()
	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, cfg, migrationRunner{db: db})
}

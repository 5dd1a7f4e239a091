package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclimatefix/turbine-selector/internal/config"
	"github.com/openclimatefix/turbine-selector/internal/database"
	"github.com/openclimatefix/turbine-selector/internal/database/dummy"
	"github.com/openclimatefix/turbine-selector/internal/database/postgres"
)

var errNeedsPostgres = errors.New("this command needs --database-type postgres")

// openStore connects to the configured backend and wraps it in a circuit
// breaker. The returned func releases the backend.
func openStore(ctx context.Context, cfg config.Config) (database.TurbineStore, func(), error) {
	log.Debug().Str("type", cfg.DatabaseType).Msg("Connecting to backend")

	var (
		store   database.TurbineStore
		closeFn = func() {}
	)
	switch cfg.DatabaseType {
	case config.DatabaseDummy:
		var (
			ds  *dummy.Store
			err error
		)
		if cfg.CatalogFile != "" {
			ds, err = dummy.LoadFile(cfg.CatalogFile)
		} else {
			ds, err = dummy.New()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
		store = ds
	case config.DatabasePostgres:
		pg, err := openPostgres(ctx, cfg, false)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = pg, pg.Close
	default:
		return nil, nil, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}

	breaker := database.NewBreakerStore(store, database.BreakerSettings{
		Name:                "turbine-store",
		ConsecutiveFailures: uint32(cfg.BreakerFailures),
		OpenTimeout:         cfg.BreakerTimeout,
	})
	return breaker, closeFn, nil
}

func openPostgres(ctx context.Context, cfg config.Config, skipMigrations bool) (*postgres.Store, error) {
	if cfg.DatabaseType != config.DatabasePostgres {
		return nil, errNeedsPostgres
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Options{
		ConnectRetries: uint64(cfg.ConnectRetries),
		SkipMigrations: skipMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database, ensure DATABASE_URL is set correctly: %w", err)
	}
	return pg, nil
}

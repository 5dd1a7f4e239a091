package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/openclimatefix/turbine-selector/internal/config"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if err != nil {
				return err
			}
			pg, err := openPostgres(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}

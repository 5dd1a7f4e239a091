package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/openclimatefix/turbine-selector/internal/config"
	"github.com/openclimatefix/turbine-selector/internal/database/dummy"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

const seedDescription = `The catalog is inserted in a single transaction: a failure stores nothing.
Seeding appends rows and ids are assigned by the database, so seeding the
same catalog twice stores every turbine twice.`

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:        "seed",
		Usage:       "Insert a YAML turbine catalog into postgres",
		Description: seedDescription,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Catalog to insert (default: built-in development catalog)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseType != config.DatabasePostgres {
				return errNeedsPostgres
			}

			descriptors, err := readCatalog(cmd.String("file"))
			if err != nil {
				return err
			}

			pg, err := openPostgres(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer pg.Close()

			ids, err := pg.CreateTurbines(ctx, descriptors)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			for i, id := range ids {
				log.Debug().Int32("id", id).Str("name", descriptors[i].Name).Msg("seeded turbine")
			}
			log.Info().Int("count", len(ids)).Msg("Seeded turbine catalog")
			return nil
		},
	}
}

func readCatalog(path string) ([]turbine.Descriptor, error) {
	if path == "" {
		return dummy.EmbeddedCatalog()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return dummy.ParseCatalog(f)
}

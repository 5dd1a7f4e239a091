// Command turbines serves and queries the hydraulic turbine selector.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/openclimatefix/turbine-selector/internal/config"
)

// overridden during build with ldflags
var version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "turbines",
		Usage:   "Select hydraulic turbines whose operating envelope covers a flow and head",
		Version: version,
		Flags:   config.GlobalFlags(),
		Before:  configureLogging,
		Commands: []*cli.Command{
			serveCmd(),
			selectCmd(),
			seedCmd(),
			migrateCmd(),
		},
	}
}

func configureLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level, err := config.ParseLevel(cmd.String(config.FlagLogLevel))
	if err != nil {
		return ctx, err
	}
	config.Config{LogLevel: level, LogFormat: cmd.String(config.FlagLogFormat)}.ConfigureLogging()
	return ctx, nil
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("turbines failed")
	}
}

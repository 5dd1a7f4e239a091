package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/openclimatefix/turbine-selector/internal/config"
	"github.com/openclimatefix/turbine-selector/internal/selection"
)

func selectCmd() *cli.Command {
	return &cli.Command{
		Name:  "select",
		Usage: "Match one operating point against the record store and print the result",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:     "Q",
				Aliases:  []string{"flow"},
				Usage:    "Flow rate Q in m³/s",
				Required: true,
			},
			&cli.FloatFlag{
				Name:     "H",
				Aliases:  []string{"head"},
				Usage:    "Head H in m",
				Required: true,
			},
			&cli.FloatFlag{
				Name:  "freq",
				Usage: "Grid frequency in Hz, echoed back only",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "json",
				Usage: "Output format (json or yaml)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if err != nil {
				return err
			}
			format := cmd.String("format")
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown output format: %q", format)
			}

			var freq *float64
			if cmd.IsSet("freq") {
				f := cmd.Float("freq")
				freq = &f
			}
			q, err := selection.NewQuery(cmd.Float("Q"), cmd.Float("H"), freq)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			strategy, err := selection.StrategyByName(cfg.BestStrategy)
			if err != nil {
				return err
			}
			res, err := selection.NewService(store, strategy).Select(ctx, q)
			if err != nil {
				return err
			}
			return writeResult(cmd.Root().Writer, format, res)
		},
	}
}

func writeResult(w io.Writer, format string, res selection.Result) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openclimatefix/turbine-selector/internal/config"
	"github.com/openclimatefix/turbine-selector/internal/health"
	"github.com/openclimatefix/turbine-selector/internal/selection"
	"github.com/openclimatefix/turbine-selector/internal/server"
)

const probeTimeout = 2 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the gRPC health service",
		Flags: config.ServeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	strategy, err := selection.StrategyByName(cfg.BestStrategy)
	if err != nil {
		return err
	}
	svc := selection.NewService(store, strategy)

	srv := server.NewServer(server.Config{
		Addr:            cfg.HTTPAddr,
		RateLimit:       rate.Limit(cfg.RateLimit),
		RateLimitBurst:  cfg.RateLimitBurst,
		ReadTimeout:     server.DefaultConfig().ReadTimeout,
		WriteTimeout:    server.DefaultConfig().WriteTimeout,
		IdleTimeout:     server.DefaultConfig().IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, svc)

	grpcSrv, hs, err := health.NewGRPCServer()
	if err != nil {
		return err
	}
	prober := health.NewProber(store, hs, cfg.ProbeInterval, probeTimeout)
	prober.OnChange(srv.SetReady)

	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("grpc_addr", cfg.GRPCAddr).
		Str("database_type", cfg.DatabaseType).
		Str("strategy", strategy.Name()).
		Float64("rate_limit", cfg.RateLimit).
		Dur("shutdown_timeout", cfg.ShutdownTimeout).
		Msg("Starting turbine selector")

	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if grpcLis != nil {
		g.Go(func() error {
			return health.Serve(gctx, grpcSrv, grpcLis)
		})
	}
	g.Go(func() error {
		return prober.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("Turbine selector stopped gracefully")
	return nil
}

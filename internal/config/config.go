// Package config turns command-line flags and their environment variables
// into a validated Config.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/openclimatefix/turbine-selector/internal/selection"
)

// Database backends.
const (
	DatabasePostgres = "postgres"
	DatabaseDummy    = "dummy"
)

// Flag names.
const (
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
	FlagDatabaseType    = "database-type"
	FlagDatabaseURL     = "database-url"
	FlagCatalogFile     = "catalog-file"
	FlagConnectRetries  = "connect-retries"
	FlagBreakerFailures = "breaker-failures"
	FlagBreakerTimeout  = "breaker-timeout"
	FlagBestStrategy    = "best-strategy"
	FlagHTTPAddr        = "http-addr"
	FlagGRPCAddr        = "grpc-addr"
	FlagRateLimit       = "rate-limit"
	FlagRateLimitBurst  = "rate-limit-burst"
	FlagShutdownTimeout = "shutdown-timeout"
	FlagProbeInterval   = "probe-interval"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  zerolog.Level
	LogFormat string

	DatabaseType    string
	DatabaseURL     string
	CatalogFile     string
	ConnectRetries  int
	BreakerFailures int
	BreakerTimeout  time.Duration

	BestStrategy string

	HTTPAddr        string
	GRPCAddr        string
	RateLimit       float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
	ProbeInterval   time.Duration
}

// GlobalFlags apply to every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Value:   "info",
			Usage:   "Log level, by name (debug, info, warn, error) or zerolog number",
			Sources: cli.EnvVars("LOGLEVEL"),
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Value:   "json",
			Usage:   "Log output format (json or console)",
			Sources: cli.EnvVars("LOGFORMAT"),
		},
		&cli.StringFlag{
			Name:    FlagDatabaseType,
			Value:   DatabasePostgres,
			Usage:   fmt.Sprintf("Record store backend (%s or %s)", DatabasePostgres, DatabaseDummy),
			Sources: cli.EnvVars("DATABASE_TYPE"),
		},
		&cli.StringFlag{
			Name:    FlagDatabaseURL,
			Usage:   "PostgreSQL connection URL",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    FlagCatalogFile,
			Usage:   "YAML catalog served by the dummy backend (default: built-in catalog)",
			Sources: cli.EnvVars("CATALOG_FILE"),
		},
		&cli.IntFlag{
			Name:    FlagConnectRetries,
			Value:   8,
			Usage:   "Connection attempts to retry at startup before giving up",
			Sources: cli.EnvVars("CONNECT_RETRIES"),
		},
		&cli.IntFlag{
			Name:    FlagBreakerFailures,
			Value:   5,
			Usage:   "Consecutive store failures that open the circuit breaker",
			Sources: cli.EnvVars("BREAKER_FAILURES"),
		},
		&cli.DurationFlag{
			Name:    FlagBreakerTimeout,
			Value:   10 * time.Second,
			Usage:   "How long the circuit breaker stays open",
			Sources: cli.EnvVars("BREAKER_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    FlagBestStrategy,
			Value:   selection.StrategyFirst,
			Usage:   fmt.Sprintf("Best candidate strategy (%s or %s)", selection.StrategyFirst, selection.StrategyNearestDesign),
			Sources: cli.EnvVars("BEST_STRATEGY"),
		},
	}
}

// ServeFlags apply to the serve command.
func ServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagHTTPAddr,
			Value:   ":8080",
			Usage:   "HTTP listen address",
			Sources: cli.EnvVars("HTTP_ADDR"),
		},
		&cli.StringFlag{
			Name:    FlagGRPCAddr,
			Value:   ":50051",
			Usage:   "gRPC health listen address, empty to disable",
			Sources: cli.EnvVars("GRPC_ADDR"),
		},
		&cli.FloatFlag{
			Name:    FlagRateLimit,
			Value:   100,
			Usage:   "Sustained API requests per second, 0 to disable limiting",
			Sources: cli.EnvVars("RATE_LIMIT"),
		},
		&cli.IntFlag{
			Name:    FlagRateLimitBurst,
			Value:   200,
			Usage:   "API request burst size",
			Sources: cli.EnvVars("RATE_LIMIT_BURST"),
		},
		&cli.DurationFlag{
			Name:    FlagShutdownTimeout,
			Value:   15 * time.Second,
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: cli.EnvVars("SHUTDOWN_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    FlagProbeInterval,
			Value:   5 * time.Second,
			Usage:   "Interval between record store readiness probes",
			Sources: cli.EnvVars("PROBE_INTERVAL"),
		},
	}
}

// FromCommand reads and validates the configuration from cmd. Flags that
// cmd does not define keep their zero value.
func FromCommand(cmd *cli.Command) (Config, error) {
	level, err := ParseLevel(cmd.String(FlagLogLevel))
	if err != nil {
		return Config{}, err
	}
	c := Config{
		LogLevel:        level,
		LogFormat:       cmd.String(FlagLogFormat),
		DatabaseType:    strings.ToLower(cmd.String(FlagDatabaseType)),
		DatabaseURL:     cmd.String(FlagDatabaseURL),
		CatalogFile:     cmd.String(FlagCatalogFile),
		ConnectRetries:  cmd.Int(FlagConnectRetries),
		BreakerFailures: cmd.Int(FlagBreakerFailures),
		BreakerTimeout:  cmd.Duration(FlagBreakerTimeout),
		BestStrategy:    cmd.String(FlagBestStrategy),
		HTTPAddr:        cmd.String(FlagHTTPAddr),
		GRPCAddr:        cmd.String(FlagGRPCAddr),
		RateLimit:       cmd.Float(FlagRateLimit),
		RateLimitBurst:  cmd.Int(FlagRateLimitBurst),
		ShutdownTimeout: cmd.Duration(FlagShutdownTimeout),
		ProbeInterval:   cmd.Duration(FlagProbeInterval),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that the settings are coherent.
func (c Config) Validate() error {
	switch c.DatabaseType {
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("--%s (DATABASE_URL) is required for the %s backend", FlagDatabaseURL, DatabasePostgres)
		}
	case DatabaseDummy:
	default:
		return fmt.Errorf("unknown database type %q, want %s or %s", c.DatabaseType, DatabasePostgres, DatabaseDummy)
	}
	if _, err := selection.StrategyByName(c.BestStrategy); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q, want json or console", c.LogFormat)
	}
	if c.ConnectRetries < 0 || c.BreakerFailures < 0 {
		return fmt.Errorf("--%s and --%s must not be negative", FlagConnectRetries, FlagBreakerFailures)
	}
	if c.RateLimit < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("--%s and --%s must not be negative", FlagRateLimit, FlagRateLimitBurst)
	}
	return nil
}

// ParseLevel accepts a zerolog level name or its integer value, as the
// LOGLEVEL variable has always been an integer.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(zerolog.TraceLevel) || n > int(zerolog.Disabled) {
			return zerolog.NoLevel, fmt.Errorf("log level %d out of range", n)
		}
		return zerolog.Level(n), nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// ConfigureLogging sets the global zerolog level and output.
func (c Config) ConfigureLogging() {
	zerolog.SetGlobalLevel(c.LogLevel)
	var out io.Writer = os.Stderr
	if c.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Package health reports record store readiness over gRPC and HTTP.
//
// A Prober pings the store on an interval and publishes the outcome to the
// standard grpc.health.v1 service and to any number of listeners, such as
// the HTTP server's readiness flag.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"buf.build/go/protovalidate"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	middleware "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/protovalidate"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name of the turbine selector.
const ServiceName = "turbines.Selector"

// InterceptorLogger adapts a zerolog logger to the grpc-middleware logging
// interface.
func InterceptorLogger(l zerolog.Logger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		l := l.With().Fields(fields).Logger()
		switch lvl {
		case logging.LevelDebug:
			l.Debug().Msg(msg)
		case logging.LevelInfo:
			l.Info().Msg(msg)
		case logging.LevelWarn:
			l.Warn().Msg(msg)
		case logging.LevelError:
			l.Error().Msg(msg)
		default:
			l.Warn().Int("level", int(lvl)).Msg(msg)
		}
	})
}

// NewGRPCServer builds a gRPC server carrying the health service and
// reflection, with logging, panic recovery and request validation on every
// call. The health server starts out NOT_SERVING.
func NewGRPCServer() (*grpc.Server, *health.Server, error) {
	validator, err := protovalidate.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create validator: %w", err)
	}

	logger := InterceptorLogger(log.With().Str("component", "grpc").Logger())
	recoveryOpt := recovery.WithRecoveryHandler(func(p any) error {
		log.Error().Str("panic", fmt.Sprint(p)).Msg("gRPC panic recovered")
		return status.Error(codes.Internal, "internal error")
	})
	logOpts := []logging.Option{logging.WithLogOnEvents(logging.FinishCall)}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.UnaryServerInterceptor(logger, logOpts...),
			middleware.UnaryServerInterceptor(validator),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			logging.StreamServerInterceptor(logger, logOpts...),
			middleware.StreamServerInterceptor(validator),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s, hs, nil
}

// Serve runs s on lis until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, s *grpc.Server, lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting GRPC server")

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Stopping GRPC server")
		s.GracefulStop()
		<-errChan
		return nil
	case err := <-errChan:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

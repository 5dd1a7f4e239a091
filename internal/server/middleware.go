package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// withMiddleware wraps an API handler with the common middleware chain.
func (s *Server) withMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return s.metricsMiddleware(
		s.requestIDMiddleware(
			s.panicRecoveryMiddleware(
				s.rateLimitMiddleware(
					s.loggingMiddleware(handler),
				),
			),
		),
	)
}

// requestIDMiddleware keeps a valid X-Request-Id from the client or mints a
// new one, and attaches a request-scoped logger to the context.
func (s *Server) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", requestID)

		l := log.With().Str("request_id", requestID).Logger()
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = l.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow() {
			rateLimitRejects.Inc()
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, turbine.Errorf(turbine.CodeRateLimited, "rate limit exceeded"))
			return
		}
		if s.rateLimiter.Limit() != rate.Inf {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(s.rateLimiter.Limit())))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(s.rateLimiter.Tokens())))
		}
		next.ServeHTTP(w, r)
	}
}

// panicRecoveryMiddleware turns a panic into a 500 reply. When the handler
// already sent its headers the reply is left as is.
func (s *Server) panicRecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = newResponseWriter(w)
		}
		defer func() {
			if rec := recover(); rec != nil {
				panicRecoveries.Inc()
				zerolog.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprint(rec)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bool("headers_sent", rw.Written()).
					Msg("panic recovered")
				if rw.Written() {
					return
				}
				s.writeError(rw, r, turbine.Errorf(turbine.CodeInternal, "internal server error"))
			}
		}()
		next.ServeHTTP(rw, r)
	}
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		l := zerolog.Ctx(r.Context())

		l.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request started")
		next.ServeHTTP(rw, r)
		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	}
}

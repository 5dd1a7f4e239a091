package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code      turbine.Code `json:"code"`
	Message   string       `json:"error"`
	RequestID string       `json:"request_id"`
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code turbine.Code) int {
	switch code {
	case turbine.CodeInvalidQuery:
		return http.StatusBadRequest
	case turbine.CodeNotFound:
		return http.StatusNotFound
	case turbine.CodeInvalidDescriptor:
		return http.StatusUnprocessableEntity
	case turbine.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError replies with err's status and code. Server-side failures get a
// generic message; their cause is only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := turbine.CodeOf(err)
	status := StatusFor(code)

	requestID := RequestID(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}

	resp := ErrorResponse{Code: code, RequestID: requestID}
	switch {
	case code == turbine.CodeStoreUnavailable:
		resp.Message = "turbine records are unavailable, try again later"
	case status >= http.StatusInternalServerError:
		resp.Code = turbine.CodeInternal
		resp.Message = "internal server error"
	default:
		resp.Message = publicMessage(err)
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondJSON(w, status, resp)
}

func publicMessage(err error) string {
	var e *turbine.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// respondJSON writes v as the JSON body with the given status. The body is
// encoded before any header goes out, so an unencodable value becomes a 500.
func respondJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{
			Code:      turbine.CodeInternal,
			Message:   "internal server error",
			RequestID: w.Header().Get("X-Request-Id"),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warn().Err(err).Msg("failed to write response body")
	}
}

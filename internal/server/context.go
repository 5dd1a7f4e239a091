package server

import "context"

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// RequestID returns the request id set by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

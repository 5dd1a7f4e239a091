package turbine

import (
	"errors"
	"fmt"
)

// Code classifies an Error for callers and transports.
type Code string

const (
	// CodeInvalidQuery marks a missing or malformed Q/H query.
	CodeInvalidQuery Code = "INVALID_QUERY"
	// CodeStoreUnavailable marks a failed read from the record store.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	// CodeNotFound marks a missing turbine or curve.
	CodeNotFound Code = "NOT_FOUND"
	// CodeCurveDecode marks an unparseable serialized efficiency curve.
	CodeCurveDecode Code = "CURVE_DECODE_FAILURE"
	// CodeInvalidDescriptor marks a descriptor violating its envelope invariants.
	CodeInvalidDescriptor Code = "INVALID_DESCRIPTOR"
	// CodeRateLimited marks a request rejected by the rate limiter.
	CodeRateLimited Code = "RATE_LIMIT_EXCEEDED"
	// CodeInternal marks anything else.
	CodeInternal Code = "INTERNAL"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrInvalidQuery     = &Error{Code: CodeInvalidQuery}
	ErrStoreUnavailable = &Error{Code: CodeStoreUnavailable}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrCurveDecode      = &Error{Code: CodeCurveDecode}
)

// Error is a classified domain error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

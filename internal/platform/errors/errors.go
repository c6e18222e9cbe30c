// Package errors provides a coded error type with wrapping and retry classification
package errors

// Always import the project errors package as perr (platform/errors)

import (
	"context"
	stderrs "errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCode classifies failures across the pipeline
// Values are stable; append only
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeUnavailable is for transport failures and 5xx where a retry may succeed
	ErrorCodeUnavailable

	// ErrorCodeTooManyRequests is for remote rate limiting; callers wait, they do not fail
	ErrorCodeTooManyRequests

	// ErrorCodeUnauthorized is for rejected credentials
	ErrorCodeUnauthorized

	// ErrorCodeForbidden is for access control failures that are not rate limits
	ErrorCodeForbidden

	// ErrorCodeInvalidArgument is for bad input or configuration
	ErrorCodeInvalidArgument

	// ErrorCodeValidation is for struct validation failures
	ErrorCodeValidation

	// ErrorCodeJSON is for undecodable payloads
	ErrorCodeJSON

	// ErrorCodeMalformed is for decodable model output that misses required fields
	ErrorCodeMalformed

	// ErrorCodeNotFound is for missing resources
	ErrorCodeNotFound

	// ErrorCodeRejected is for non-retryable 4xx responses from a remote
	ErrorCodeRejected

	// ErrorCodeCorrupt is for unreadable local state (log lines, checkpoints)
	ErrorCodeCorrupt

	// ErrorCodeIO is for durable write failures; these abort a run
	ErrorCodeIO

	// ErrorCodeDuplicateKey is for unique constraint violations
	ErrorCodeDuplicateKey

	// ErrorCodeDB is for general database errors
	ErrorCodeDB
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:         "unknown",
	ErrorCodeUnavailable:     "unavailable",
	ErrorCodeTooManyRequests: "rate_limited",
	ErrorCodeUnauthorized:    "unauthorized",
	ErrorCodeForbidden:       "forbidden",
	ErrorCodeInvalidArgument: "invalid_argument",
	ErrorCodeValidation:      "validation",
	ErrorCodeJSON:            "json",
	ErrorCodeMalformed:       "malformed",
	ErrorCodeNotFound:        "not_found",
	ErrorCodeRejected:        "rejected",
	ErrorCodeCorrupt:         "corrupt",
	ErrorCodeIO:              "io",
	ErrorCodeDuplicateKey:    "duplicate_key",
	ErrorCodeDB:              "db",
}

// String returns the snake_case name used in logs and failure summaries
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code_%d", uint16(c))
}

// HTTPStatusCode maps an ErrorCode to the status served by the status endpoint
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeInvalidArgument, ErrorCodeValidation, ErrorCodeJSON:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotFound is a sentinel not found error
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a machine code, a message, an optional op label and the wrapped cause
type Error struct {
	orig error
	msg  string
	code ErrorCode
	op   string
}

// Wire is the JSON form served by the status endpoint
type Wire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// WireFrom converts any error into a Wire payload
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code.String(), Message: e.msg}
	}
	return Wire{Code: ErrorCodeUnknown.String(), Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts the outermost ErrorCode, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithOp attaches an operation label (copy-on-write); foreign errors pass through
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with a formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// Malformedf returns a malformed-output error
func Malformedf(format string, a ...any) error { return Newf(ErrorCodeMalformed, format, a...) }

// Corruptf returns a local corruption error
func Corruptf(format string, a ...any) error { return Newf(ErrorCodeCorrupt, format, a...) }

// IOf returns a durable write error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// Transient reports whether a remote call that failed with err is worth another attempt.
// Timeouts of the call itself count; cancellation of the caller does not.
func Transient(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests, ErrorCodeJSON, ErrorCodeMalformed:
		return true
	case ErrorCodeUnknown:
	default:
		return false
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrs.As(err, &ne)
}

// Retryable reports whether a database error is worth retrying (see pg.go)
func Retryable(err error) bool { return IsRetryable(err) }

package alerts

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies fetch failures so callers can distinguish real
// upstream problems from synthetic conditions like an active backoff.
type ErrorKind string

const (
	// ErrorUnreachable covers network errors and timeouts
	ErrorUnreachable ErrorKind = "upstream_unreachable"
	// ErrorRejected covers non-2xx upstream responses
	ErrorRejected ErrorKind = "upstream_rejected"
	// ErrorMalformed covers unparsable or HTML-shaped bodies
	ErrorMalformed ErrorKind = "upstream_malformed"
	// ErrorBackoff is synthetic: the source was skipped, not attempted
	ErrorBackoff ErrorKind = "backoff_active"
	// ErrorConfig covers invalid source configuration
	ErrorConfig ErrorKind = "config_invalid"
)

// FetchError is the single error type adapters propagate to the orchestrator
type FetchError struct {
	Kind    ErrorKind
	Message string
	// Status is the upstream HTTP status code for rejections, when known
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Unreachable wraps a network-level failure
func Unreachable(err error) *FetchError {
	return &FetchError{Kind: ErrorUnreachable, Message: "upstream unreachable", Err: err}
}

// Rejected reports a non-2xx upstream status
func Rejected(status int) *FetchError {
	return &FetchError{Kind: ErrorRejected, Message: fmt.Sprintf("upstream returned status %d", status), Status: status}
}

// Unauthorized reports whether the upstream rejected the request over
// credentials rather than for any other reason.
func (e *FetchError) Unauthorized() bool {
	return e.Kind == ErrorRejected && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// Rejectedf reports an upstream-level rejection with a custom message
func Rejectedf(format string, args ...interface{}) *FetchError {
	return &FetchError{Kind: ErrorRejected, Message: fmt.Sprintf(format, args...)}
}

// Malformed reports an unparsable response body
func Malformed(message string, err error) *FetchError {
	return &FetchError{Kind: ErrorMalformed, Message: message, Err: err}
}

// ConfigInvalid reports a source configuration problem
func ConfigInvalid(format string, args ...interface{}) *FetchError {
	return &FetchError{Kind: ErrorConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error kind, or ErrorUnreachable when err is not a
// FetchError (plain transport errors surface without classification).
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrorUnreachable
}

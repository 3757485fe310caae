package upload

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConfiguration
	KindUpstream
	KindFetch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Error is a failure that is reported to the caller as {"message": ...}.
// Message is safe to return to clients; Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind to an HTTP status.
func (e *Error) StatusCode() int {
	if e.Kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// ConfigurationError wraps a missing-environment error from config.
func ConfigurationError(err error) *Error {
	return &Error{Kind: KindConfiguration, Message: err.Error(), Err: err}
}

// AsError reports whether err carries a client-facing *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

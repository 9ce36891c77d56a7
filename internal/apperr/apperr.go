// Package apperr defines the error kinds shared by the offer core and its
// collaborators, and how each kind is surfaced over HTTP.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	Internal             Kind = "internal"
	InvalidPayload       Kind = "invalid_payload"
	ConfigurationMissing Kind = "configuration_missing"
	StoreUnavailable     Kind = "store_unavailable"
	RelayFailed          Kind = "relay_failed"
	NotFound             Kind = "not_found"
	Unauthorized         Kind = "unauthorized"
)

// Error carries a Kind, a client-safe message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.New(kind, ""))
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, err error, msg string) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "Internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidPayload:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	case RelayFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

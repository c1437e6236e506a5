// Package apperr classifies errors into the five kinds from spec.md §7
// so call sites can respond (HTTP status, retry/no-retry, log level)
// without re-deriving policy at every handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInput Kind = iota
	KindAuth
	KindConflict
	KindUpstream
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Status returns the default HTTP status for the kind. Handlers may
// override (e.g. auth errors that should read as 403 rather than 401).
func (k Kind) Status() int {
	switch k {
	case KindInput:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. It wraps an underlying cause
// without exposing it to callers — field-level detail lives in Message.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Status  int // 0 means "use Kind.Status()"
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status this error should be reported with.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, cause: cause}
}

func Input(msg string) *Error            { return newErr(KindInput, msg, nil) }
func InputField(field, msg string) *Error { return &Error{Kind: KindInput, Message: msg, Field: field} }
func Auth(msg string) *Error             { return newErr(KindAuth, msg, nil) }
func Forbidden(msg string) *Error        { return &Error{Kind: KindAuth, Message: msg, Status: http.StatusForbidden} }
func NotFound(msg string) *Error         { return &Error{Kind: KindAuth, Message: msg, Status: http.StatusNotFound} }
func Conflict(msg string) *Error         { return newErr(KindConflict, msg, nil) }
func Upstream(msg string, cause error) *Error { return newErr(KindUpstream, msg, cause) }
func Internal(msg string, cause error) *Error { return newErr(KindInternal, msg, cause) }
func RateLimited(msg string) *Error      { return &Error{Kind: KindAuth, Message: msg, Status: http.StatusTooManyRequests} }

// As is a thin convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Package apperr is the error taxonomy shared by handlers and middleware.
// Every failure that reaches the HTTP layer is either an *Error or is treated
// as an upstream failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error and fixes its HTTP status.
type Kind int

const (
	KindUpstream Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
)

// Reason refines authentication and authorization failures.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMissing          Reason = "missing"
	ReasonMalformed        Reason = "malformed"
	ReasonExpired          Reason = "expired"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonRevoked          Reason = "revoked"
	ReasonWrongRole        Reason = "wrong_role"
	ReasonPathNotPermitted Reason = "path_not_permitted"
)

// Error carries a client-facing message plus an optional wrapped cause.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Reason so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrTokenMissing          = &Error{Kind: KindUnauthenticated, Reason: ReasonMissing, Message: "Unauthorized"}
	ErrTokenMalformed        = &Error{Kind: KindUnauthenticated, Reason: ReasonMalformed, Message: "Invalid token"}
	ErrTokenExpired          = &Error{Kind: KindUnauthenticated, Reason: ReasonExpired, Message: "Token expired"}
	ErrTokenInvalidSignature = &Error{Kind: KindUnauthenticated, Reason: ReasonInvalidSignature, Message: "Invalid token"}
	ErrTokenRevoked          = &Error{Kind: KindUnauthenticated, Reason: ReasonRevoked, Message: "Session is no longer valid"}
	ErrWrongRole             = &Error{Kind: KindForbidden, Reason: ReasonWrongRole, Message: "Forbidden: Insufficient permissions"}
	ErrPathNotPermitted      = &Error{Kind: KindForbidden, Reason: ReasonPathNotPermitted, Message: "Access denied"}
)

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func TooLarge(msg string) *Error   { return &Error{Kind: KindTooLarge, Message: msg} }

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Upstream wraps a store or geocoder failure.  msg is what production
// clients see; err is only exposed outside production.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// From extracts an *Error from err, wrapping anything else as upstream.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("Internal Server Error", err)
}

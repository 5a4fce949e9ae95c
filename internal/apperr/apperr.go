// Package apperr is the error taxonomy shared by the ledger, matching and
// HTTP layers: BadRequest, Unauthorized, NotFound, MethodNotAllowed,
// Insufficient and InternalError, each mapping to one HTTP status.
package apperr

import (
	"fmt"
	"net/http"

	"stock-exchange/internal/model"
)

type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindNotFound
	KindMethodNotAllowed
	KindInsufficient
	KindInternal
)

// Error is the single error type every component returns; the HTTP layer
// switches on Kind to pick a status code and response body.
type Error struct {
	Kind    Kind
	Message string
	// Result carries the OrderResult body for Insufficient errors — the
	// only kind whose response is structured rather than a short message.
	Result *model.OrderResult
}

func (e *Error) Error() string { return e.Message }

func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func MethodNotAllowed(format string, args ...any) error {
	return &Error{Kind: KindMethodNotAllowed, Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// Insufficient wraps a failed reservation: deficit is the positive amount the
// caller was short, in cents (bid reservation) or shares (ask reservation).
func Insufficient(message string, deficit int64) error {
	return &Error{
		Kind:    KindInsufficient,
		Message: message,
		Result: &model.OrderResult{
			Succeed: false,
			Message: message,
			Error:   message,
			Lack:    &deficit,
		},
	}
}

// As extracts an *Error from err, wrapping unknown errors as InternalError.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindInsufficient:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// Package apierr implements the §7 error taxonomy shared by every handler.
package apierr

import "net/http"

// Kind is one row of the §7 error taxonomy table.
type Kind string

const (
	BadInput      Kind = "bad_input"
	Unauthorized  Kind = "unauthorized"
	NotFound      Kind = "not_found"
	Conflict      Kind = "conflict"
	Gone          Kind = "gone"
	PayloadTooBig Kind = "payload_too_large"
	RateLimited   Kind = "rate_limited"
	Overloaded    Kind = "overloaded"
	Internal      Kind = "internal"
)

// Error is the typed error every handler surfaces to the client.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds, only meaningful for RateLimited/Overloaded
	Data       any // extra structured fields merged into the response body, e.g. {"isFull":true}
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus maps a Kind to its §7 status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadInput:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Gone:
		return http.StatusGone
	case PayloadTooBig:
		return http.StatusRequestEntityTooLarge
	case RateLimited:
		return http.StatusTooManyRequests
	case Overloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func BadInputf(message string) *Error      { return New(BadInput, message) }
func Unauthorizedf(message string) *Error  { return New(Unauthorized, message) }
func NotFoundf(message string) *Error      { return New(NotFound, message) }
func Conflictf(message string) *Error      { return New(Conflict, message) }
func Gonef(message string) *Error          { return New(Gone, message) }
func PayloadTooBigf(message string) *Error { return New(PayloadTooBig, message) }
func Internalf(message string) *Error      { return New(Internal, message) }

// RateLimitedf builds a 429 carrying the Retry-After seconds the client
// should honor, per §7's retry policy.
func RateLimitedf(message string, retryAfterSeconds int) *Error {
	return &Error{Kind: RateLimited, Message: message, RetryAfter: retryAfterSeconds}
}

// Overloadedf builds a 503 carrying Retry-After, per §4.D.
func Overloadedf(message string, retryAfterSeconds int) *Error {
	return &Error{Kind: Overloaded, Message: message, RetryAfter: retryAfterSeconds}
}

// UnauthorizedWithData builds a 403 carrying an extra structured-data field,
// e.g. {"isFull":true} on the room-full join rejection (§6, §8 S2).
func UnauthorizedWithData(message string, data any) *Error {
	return &Error{Kind: Unauthorized, Message: message, Data: data}
}

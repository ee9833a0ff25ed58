package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so callers can branch on outcome
// without string matching.
type Kind string

const (
	KindInvalid          Kind = "INVALID"           // 400: bad input, permanent
	KindUnauthorized     Kind = "UNAUTHORIZED"      // 401: credentials rejected, permanent
	KindNotFound         Kind = "NOT_FOUND"         // 404: missing session/image/tool
	KindConflict         Kind = "CONFLICT"          // 409: already resolved, already pushed, terminal state
	KindBusy             Kind = "BUSY"              // 409: a generation is already in flight
	KindAwaitingApproval Kind = "AWAITING_APPROVAL" // 403: mutating tool call without approval
	KindUnavailable      Kind = "UNAVAILABLE"       // 503: transient upstream failure, retryable
	KindInternal         Kind = "INTERNAL"          // 500
)

// Error is a typed outcome carrying an error kind. Pipeline and
// orchestrator failures are always one of these, never bare errors,
// so the HTTP boundary can map them to status codes.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates an error with the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an error with the given kind and formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NOT_FOUND error for a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// Invalid creates an INVALID error.
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Message: msg}
}

// Conflict creates a CONFLICT error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Busy creates a BUSY error for a session with an in-flight generation.
func Busy(sessionID string) *Error {
	return &Error{
		Kind:    KindBusy,
		Message: fmt.Sprintf("session %s already has a generation in flight", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// AwaitingApproval creates the typed outcome for a mutating tool call
// that has no resolved approval yet.
func AwaitingApproval(callID string) *Error {
	return &Error{
		Kind:    KindAwaitingApproval,
		Message: fmt.Sprintf("tool call %s requires approval", callID),
		Details: map[string]any{"tool_call_id": callID},
	}
}

// Unavailable creates a retryable UNAVAILABLE error wrapping a
// transient upstream failure.
func Unavailable(msg string) *Error {
	return &Error{Kind: KindUnavailable, Message: msg}
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindInternal, Message: msg}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an Error with the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether err represents a transient failure worth
// retrying with backoff.
func Retryable(err error) bool {
	return Is(err, KindUnavailable)
}

// HTTPStatus maps an error kind to an HTTP status code. Only the
// handler boundary should call this.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindAwaitingApproval:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindBusy:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

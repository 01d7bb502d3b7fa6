// Package apperr defines the errors surfaced by the link flow and how they
// map onto HTTP responses
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound covers both unknown and already completed tokens
	ErrNotFound = errors.New("token not found")

	// ErrMemberGone is returned when the subject left the realm before confirming
	ErrMemberGone = errors.New("member no longer present")

	// ErrMissingIdentity is returned when the trusted identity header is absent
	ErrMissingIdentity = errors.New("missing external identity")
)

// StorageError wraps a token store failure. The request is safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s, %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ExternalServiceError wraps a failed chat platform call.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string { return fmt.Sprintf("platform: %s, %v", e.Op, e.Err) }
func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NotificationError is only ever logged.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string { return fmt.Sprintf("notify %s: %v", e.Sink, e.Err) }
func (e *NotificationError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil or already one.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

// External wraps err as an ExternalServiceError unless it is nil or a sentinel.
func External(op string, err error) error {
	if err == nil || errors.Is(err, ErrMemberGone) {
		return err
	}

	return &ExternalServiceError{Op: op, Err: err}
}

// Retryable reports whether repeating the whole request may succeed.
func Retryable(err error) bool {
	var se *StorageError
	var ee *ExternalServiceError

	return errors.As(err, &se) || errors.As(err, &ee) || errors.Is(err, context.DeadlineExceeded)
}

// Status maps err to the HTTP status code shown to the user.
func Status(err error) int {
	var se *StorageError
	var ee *ExternalServiceError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMemberGone):
		return http.StatusGone
	case errors.Is(err, ErrMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	case errors.As(err, &ee):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a short message that is safe to show to the user.
func Message(err error) string {
	var se *StorageError
	var ee *ExternalServiceError

	switch {
	case errors.Is(err, ErrNotFound):
		return "this link is invalid or has already been used"
	case errors.Is(err, ErrMemberGone):
		return "you are no longer a member of the server, rejoin and request a new link"
	case errors.Is(err, ErrMissingIdentity):
		return "we couldn't determine who you are, please log in again"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out, please try again"
	case errors.As(err, &se):
		return "the database is unavailable right now, please try again"
	case errors.As(err, &ee):
		return "the chat server didn't respond as expected, please try again"
	default:
		return "internal server error"
	}
}

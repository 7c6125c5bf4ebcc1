package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error is a classified failure response from the mail API. StatusCode
// is zero when the failure happened before a status was received
// (transport failure, unparseable body).
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api error: %s", e.Message)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AuthError indicates the session is no longer valid (HTTP 401). The
// caller is expected to hand off to the login flow rather than surface
// a generic error.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// RateLimitError indicates the send quota is exhausted (HTTP 429 or a
// locally tracked quota). RetryAfter is the wait until sending is
// allowed again, when known.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry in %s", e.RetryAfter.Round(time.Second))
	}
	return "rate limited"
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsCancelled reports whether err is the result of a superseded request
// being aborted. Cancellation is not a failure and must never be
// surfaced to the user.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsForbidden reports whether err is an HTTP 403 permission denial.
func IsForbidden(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a rate-limit rejection, and if
// so how long to wait before retrying.
func IsRateLimited(err error) (time.Duration, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter, true
	}
	return 0, false
}

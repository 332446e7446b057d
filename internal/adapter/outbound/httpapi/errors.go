package httpapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrUnauthorized is matched by API errors with status 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is matched by API errors with status 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is matched by API errors with status 404.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest is matched by API errors with status 400.
	ErrBadRequest = errors.New("bad request")

	// ErrRefreshFailed is matched by *RefreshError.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int
	// Method and Path identify the request.
	Method string
	Path   string
	// Message is the server's "error" or "detail" field, when present.
	Message string
}

// Error returns a human-readable description of the failure.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrUnauthorized) and the other status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// RefreshError is returned when a 401 could not be recovered because the
// refresh call failed. By the time it is returned the session is cleared,
// either by this request or by whatever ended it while the refresh ran.
type RefreshError struct {
	// StatusCode is the refresh endpoint status, 0 for transport failures.
	StatusCode int
	// Cause is the underlying error.
	Cause error
}

// Error returns a human-readable description of the refresh failure.
func (e *RefreshError) Error() string {
	switch {
	case e.Cause != nil && e.StatusCode != 0:
		return fmt.Sprintf("token refresh failed with status %d: %v", e.StatusCode, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("token refresh failed: %v", e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("token refresh failed with status %d", e.StatusCode)
	default:
		return "token refresh failed"
	}
}

// Unwrap returns the underlying error cause.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrRefreshFailed).
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

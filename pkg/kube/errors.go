package kube

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned for HTTP 404. It is an expected signal for
// existence checks, not a failure.
var ErrNotFound = errors.New("resource not found")

// APIError is any non-2xx, non-404 response from the control plane
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kubernetes API %s %s failed: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// TransientError is a connection failure or timeout. It is surfaced, never retried.
type TransientError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("kubernetes API %s %s did not complete: %v", e.Method, e.Path, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is an HTTP 409 from the control plane
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

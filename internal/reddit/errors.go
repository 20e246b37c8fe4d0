package reddit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingCredentials is returned by New without a client id or secret.
	ErrMissingCredentials = errors.New("reddit client id and secret are required")
	// ErrNotFound is returned when a post does not exist.
	ErrNotFound = errors.New("reddit: not found")
	// ErrInvalidArgument is returned for empty subreddit names, IDs or bodies.
	ErrInvalidArgument = errors.New("reddit: invalid argument")
)

// APIError is a non-2xx response, or an error list in a 200 JSON body.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	// Reasons holds Reddit's error codes for api_type=json calls, e.g. RATELIMIT.
	Reasons []string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reddit: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Reasons) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Reasons, "; "))
	} else if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

// Temporary reports whether the request is worth retrying. A 429 always is.
// A 5xx is only for idempotent methods: a POST may already have been applied.
func (e *APIError) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500 && idempotent(e.Method)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a 404 or ErrNotFound.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

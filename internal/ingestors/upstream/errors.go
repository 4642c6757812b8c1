package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// APIError is a non-2xx response from an upstream API.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the status to a domain error: 404 is domain.ErrNotFoundUpstream,
// 5xx is domain.ErrUpstreamUnavailable.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFoundUpstream
	case e.StatusCode >= 500:
		return domain.ErrUpstreamUnavailable
	default:
		return nil
	}
}

// RateLimitError is returned when the upstream keeps refusing requests.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("upstream: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap makes rate limiting a transient upstream failure.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrUpstreamUnavailable
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFoundUpstream)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRetryable reports whether a request may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

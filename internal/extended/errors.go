package extended

import (
	"fmt"
)

// APIError is an error response from the Extended API. Specific variants
// below wrap it so errors.As on *APIError matches any of them.
type APIError struct {
	Status   int
	Message  string
	Response map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// AuthError is an authentication failure (401, 403).
type AuthError struct {
	APIError
}

func (e *AuthError) Unwrap() error { return &e.APIError }

// RateLimitError is a 429 from the exchange.
type RateLimitError struct {
	APIError
}

func (e *RateLimitError) Unwrap() error { return &e.APIError }

// NotFoundError is a 404 for a market, order or account resource.
type NotFoundError struct {
	APIError
}

func (e *NotFoundError) Unwrap() error { return &e.APIError }

// ValidationError reports a request rejected locally before any I/O.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

package backend

import (
	"errors"
	"fmt"
)

// APIError is the single error shape surfaced for every failed backend call:
// HTTP error responses, timeouts, network failures, and retry exhaustion.
type APIError struct {
	// StatusCode is the HTTP status of the failing response, 408 for a
	// per-attempt timeout, or 0 when no HTTP response was received.
	StatusCode int

	// Message is human-readable. For HTTP errors it comes from the decoded
	// body's "message" or "error" field, falling back to "HTTP <status>".
	Message string

	// Payload carries the decoded error body from the backend, if any.
	Payload any

	// Err is the underlying cause, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// newStatusError builds an APIError from a non-2xx response status and its
// decoded body.
func newStatusError(status int, payload any) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    messageFromPayload(payload, fmt.Sprintf("HTTP %d", status)),
		Payload:    payload,
	}
}

// messageFromPayload pulls a human-readable message out of a decoded error
// body, preferring "message" over "error".
func messageFromPayload(payload any, fallback string) string {
	body, ok := payload.(map[string]any)
	if !ok {
		return fallback
	}
	for _, key := range []string{"message", "error"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

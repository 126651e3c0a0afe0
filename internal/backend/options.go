package backend

import (
	"net/http"
	"time"
)

// Default request behavior, overridable via config.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 1 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// defaultRetryStatuses are the HTTP statuses retried out of the box.
var defaultRetryStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RequestOptions carries the per-call knobs for a backend request.
// The zero value is valid: no query, no body, no extra headers.
type RequestOptions struct {
	// Query parameters appended to the URL. Nil values are omitted
	// entirely; everything else is stringified.
	Query map[string]any

	// Body is JSON-marshalled into the request body when non-nil.
	Body any

	// Header entries are applied last and override the client's defaults,
	// matched case-insensitively.
	Header http.Header
}

// RetryPolicy controls which failures are retried and how long to back off.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so
	// MaxRetries+1 attempts are made in total.
	MaxRetries int

	// BaseDelay is the backoff before the first retry; the delay doubles
	// with each subsequent retry.
	BaseDelay time.Duration

	// Statuses is the set of HTTP status codes eligible for retry.
	Statuses map[int]bool
}

// DefaultRetryPolicy returns the retry policy used when config leaves the
// retry settings unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultRetryDelay,
		Statuses:   statusSet(defaultRetryStatuses),
	}
}

// retryable reports whether a response status is in the retry set.
func (p RetryPolicy) retryable(status int) bool {
	return p.Statuses[status]
}

// delay returns the backoff to wait after a failed attempt (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

func statusSet(statuses []int) map[int]bool {
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

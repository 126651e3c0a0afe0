package backend

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewStatusError_MessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload any
		want    string
	}{
		{
			name:    "message field preferred",
			status:  http.StatusBadRequest,
			payload: map[string]any{"message": "bad filter", "error": "ignored"},
			want:    "bad filter",
		},
		{
			name:    "error field fallback",
			status:  http.StatusConflict,
			payload: map[string]any{"error": "already exists"},
			want:    "already exists",
		},
		{
			name:    "http status fallback for empty body",
			status:  http.StatusBadGateway,
			payload: nil,
			want:    "HTTP 502",
		},
		{
			name:    "http status fallback for non-object body",
			status:  http.StatusServiceUnavailable,
			payload: []any{"unexpected"},
			want:    "HTTP 503",
		},
		{
			name:    "http status fallback for non-string message",
			status:  http.StatusInternalServerError,
			payload: map[string]any{"message": 42},
			want:    "HTTP 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newStatusError(tt.status, tt.payload)
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	withStatus := &APIError{StatusCode: 503, Message: "unavailable"}
	if got := withStatus.Error(); got != "backend error 503: unavailable" {
		t.Errorf("Error() = %q", got)
	}

	withoutStatus := &APIError{Message: "connection refused"}
	if got := withoutStatus.Error(); got != "backend error: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("fetch signals: %w", &APIError{Message: "unreachable", Err: cause})

	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatal("AsAPIError() failed to find APIError in chain")
	}
	if apiErr.Message != "unreachable" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not reach the wrapped cause")
	}
}

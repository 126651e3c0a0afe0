package harvester

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"signal-harvester-go/internal/backend"
	"signal-harvester-go/internal/config"
	"signal-harvester-go/internal/model"
)

func testService(baseURL string, notify Notifier) *Service {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL:         baseURL,
			TimeoutMs:       5000,
			MaxRetries:      1,
			RetryDelayMs:    1,
			RetryStatuses:   []int{502, 503},
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := backend.New(cfg, logger, nil)
	return NewService(client, logger, notify)
}

func TestService_Signals_ForwardsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/signals" {
			t.Errorf("path = %q, want /v1/signals", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("category") != "emerging-tech" {
			t.Errorf("category = %q, want %q", q.Get("category"), "emerging-tech")
		}
		if q.Get("limit") != "5" {
			t.Errorf("limit = %q, want %q", q.Get("limit"), "5")
		}
		if q.Has("source") {
			t.Error("empty source filter should be omitted from the query")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.SignalList{
			Page:  model.Page{Total: 1, Limit: 5},
			Items: []model.DiscoverySignal{{ID: "sig-1", Title: "quantum batteries"}},
		})
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	list, err := svc.Signals(context.Background(), model.SignalFilter{Category: "emerging-tech", Limit: 5})
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != "sig-1" {
		t.Errorf("Items = %+v, want one signal sig-1", list.Items)
	}
}

func TestService_Fail_NotifiesExactlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	var notifications atomic.Int32
	svc := testService(srv.URL, func(string) { notifications.Add(1) })

	if _, err := svc.Signals(context.Background(), model.SignalFilter{}); err == nil {
		t.Fatal("Signals() expected error, got nil")
	}

	if got := notifications.Load(); got != 1 {
		t.Errorf("notifications = %d, want exactly 1", got)
	}
}

func TestService_Fail_UserMessages(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusUnauthorized, `{}`, "Authentication failed. Check your API key."},
		{http.StatusForbidden, `{}`, "You do not have permission to perform this action."},
		{http.StatusNotFound, `{}`, "The requested resource was not found."},
		{http.StatusTooManyRequests, `{}`, "Too many requests. Please wait a moment and try again."},
		{http.StatusInternalServerError, `{}`, "The Signal Harvester backend is currently unavailable. Please try again later."},
		{http.StatusConflict, `{"message":"duplicate annotation"}`, "duplicate annotation"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var gotMsg string
			svc := testService(srv.URL, func(msg string) { gotMsg = msg })

			_, err := svc.TrendingTopics(context.Background(), 24, 10)
			if err == nil {
				t.Fatal("TrendingTopics() expected error, got nil")
			}

			apiErr, ok := backend.AsAPIError(err)
			if !ok {
				t.Fatalf("error %T is not *backend.APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d (must be preserved)", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
			if gotMsg != tt.want {
				t.Errorf("notified %q, want %q", gotMsg, tt.want)
			}
		})
	}
}

func TestService_Fail_PreservesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"nope","required_role":"curator"}`))
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	_, err := svc.EntityRelationships(context.Background(), "ent-1", 2)
	if err == nil {
		t.Fatal("EntityRelationships() expected error, got nil")
	}

	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		t.Fatalf("error %T is not *backend.APIError", err)
	}
	payload, ok := apiErr.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload %T is not a decoded object", apiErr.Payload)
	}
	if payload["required_role"] != "curator" {
		t.Errorf("payload.required_role = %v, want %q", payload["required_role"], "curator")
	}
}

func TestService_Overview_FansOut(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/signals":
			_ = json.NewEncoder(w).Encode(model.SignalList{Items: []model.DiscoverySignal{{ID: "sig-1"}}})
		case "/v1/topics/trending":
			_ = json.NewEncoder(w).Encode(model.TopicList{Items: []model.TrendingTopic{{Topic: "fusion"}}})
		case "/v1/artifacts":
			_ = json.NewEncoder(w).Encode(model.ArtifactList{Items: []model.ResearchArtifact{{ID: "art-1"}}})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	overview, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("backend calls = %d, want 3", got)
	}
	if len(overview.Signals) != 1 || len(overview.Topics) != 1 || len(overview.Artifacts) != 1 {
		t.Errorf("overview incomplete: %+v", overview)
	}
}

func TestService_Overview_SingleNotificationOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var notifications atomic.Int32
	svc := testService(srv.URL, func(string) { notifications.Add(1) })

	if _, err := svc.Overview(context.Background()); err == nil {
		t.Fatal("Overview() expected error, got nil")
	}
	if got := notifications.Load(); got != 1 {
		t.Errorf("notifications = %d, want exactly 1 for the whole overview", got)
	}
}

func TestService_CreateAnnotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var a model.Annotation
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		a.ID = "note-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(a)
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	created, err := svc.CreateAnnotation(context.Background(), model.Annotation{
		TargetID: "sig-1",
		Author:   "ana",
		Body:     "worth a deeper look",
	})
	if err != nil {
		t.Fatalf("CreateAnnotation() error = %v", err)
	}
	if created.ID != "note-1" {
		t.Errorf("ID = %q, want %q", created.ID, "note-1")
	}
}

func TestService_DeleteAnnotation_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		if r.URL.Path != "/v1/annotations/note-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	if err := svc.DeleteAnnotation(context.Background(), "note-1"); err != nil {
		t.Fatalf("DeleteAnnotation() error = %v", err)
	}
}

func TestService_UpdateArtifactStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/v1/artifacts/art-1/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.ResearchArtifact{ID: "art-1", Status: "reviewed"})
	}))
	defer srv.Close()

	svc := testService(srv.URL, nil)

	updated, err := svc.UpdateArtifactStatus(context.Background(), "art-1", "reviewed")
	if err != nil {
		t.Fatalf("UpdateArtifactStatus() error = %v", err)
	}
	if updated.Status != "reviewed" {
		t.Errorf("Status = %q, want %q", updated.Status, "reviewed")
	}
}

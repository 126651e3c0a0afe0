// Package harvester implements the dashboard-facing service layer: typed
// fetches against the backend API and the mapping of backend failures to
// user-facing messages.
package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"signal-harvester-go/internal/backend"
	"signal-harvester-go/internal/model"
)

// overviewLimit caps how many items each overview panel fetches.
const overviewLimit = 10

// Notifier delivers a user-facing failure message. It is injected so the
// service never touches a process-wide notification channel directly.
type Notifier func(message string)

// Service fetches dashboard data from the backend API.
type Service struct {
	client *backend.Client
	logger *slog.Logger
	notify Notifier
}

// NewService creates a Service. The notifier may be nil to disable
// user-facing notifications.
func NewService(client *backend.Client, logger *slog.Logger, notify Notifier) *Service {
	return &Service{
		client: client,
		logger: logger.With("component", "harvester_service"),
		notify: notify,
	}
}

// Signals lists discovery signals matching the filter.
func (s *Service) Signals(ctx context.Context, f model.SignalFilter) (*model.SignalList, error) {
	opts := &backend.RequestOptions{Query: signalQuery(f)}
	var list model.SignalList
	if err := s.client.Get(ctx, "/v1/signals", opts, &list); err != nil {
		return nil, s.fail("list signals", err)
	}
	return &list, nil
}

// Artifacts lists research artifacts matching the filter.
func (s *Service) Artifacts(ctx context.Context, f model.ArtifactFilter) (*model.ArtifactList, error) {
	opts := &backend.RequestOptions{Query: artifactQuery(f)}
	var list model.ArtifactList
	if err := s.client.Get(ctx, "/v1/artifacts", opts, &list); err != nil {
		return nil, s.fail("list artifacts", err)
	}
	return &list, nil
}

// TrendingTopics lists trending topics over the given window.
func (s *Service) TrendingTopics(ctx context.Context, windowHours, limit int) (*model.TopicList, error) {
	query := map[string]any{}
	if windowHours > 0 {
		query["window_hours"] = windowHours
	}
	if limit > 0 {
		query["limit"] = limit
	}

	var list model.TopicList
	if err := s.client.Get(ctx, "/v1/topics/trending", &backend.RequestOptions{Query: query}, &list); err != nil {
		return nil, s.fail("list trending topics", err)
	}
	return &list, nil
}

// EntityRelationships returns the relationship graph around an entity.
func (s *Service) EntityRelationships(ctx context.Context, entityID string, depth int) (*model.RelationshipGraph, error) {
	query := map[string]any{}
	if depth > 0 {
		query["depth"] = depth
	}

	var graph model.RelationshipGraph
	path := "/v1/entities/" + url.PathEscape(entityID) + "/relationships"
	if err := s.client.Get(ctx, path, &backend.RequestOptions{Query: query}, &graph); err != nil {
		return nil, s.fail("load entity relationships", err)
	}
	return &graph, nil
}

// Overview fetches the dashboard landing-page panels concurrently. A single
// failed panel fails the whole overview with one notification.
func (s *Service) Overview(ctx context.Context) (*model.Overview, error) {
	var (
		signals   model.SignalList
		topics    model.TopicList
		artifacts model.ArtifactList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts := &backend.RequestOptions{Query: map[string]any{"limit": overviewLimit}}
		return s.client.Get(gctx, "/v1/signals", opts, &signals)
	})
	g.Go(func() error {
		opts := &backend.RequestOptions{Query: map[string]any{"limit": overviewLimit}}
		return s.client.Get(gctx, "/v1/topics/trending", opts, &topics)
	})
	g.Go(func() error {
		opts := &backend.RequestOptions{Query: map[string]any{"limit": overviewLimit}}
		return s.client.Get(gctx, "/v1/artifacts", opts, &artifacts)
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("load overview", err)
	}

	return &model.Overview{
		Signals:   signals.Items,
		Topics:    topics.Items,
		Artifacts: artifacts.Items,
	}, nil
}

// CreateAnnotation attaches a note to a signal or artifact.
func (s *Service) CreateAnnotation(ctx context.Context, a model.Annotation) (*model.Annotation, error) {
	var created model.Annotation
	if err := s.client.Post(ctx, "/v1/annotations", &backend.RequestOptions{Body: a}, &created); err != nil {
		return nil, s.fail("create annotation", err)
	}
	return &created, nil
}

// UpdateArtifactStatus moves an artifact through its review workflow.
func (s *Service) UpdateArtifactStatus(ctx context.Context, artifactID, status string) (*model.ResearchArtifact, error) {
	body := map[string]string{"status": status}
	var updated model.ResearchArtifact
	path := "/v1/artifacts/" + url.PathEscape(artifactID) + "/status"
	if err := s.client.Patch(ctx, path, &backend.RequestOptions{Body: body}, &updated); err != nil {
		return nil, s.fail("update artifact status", err)
	}
	return &updated, nil
}

// DeleteAnnotation removes a note. The backend answers 204 on success.
func (s *Service) DeleteAnnotation(ctx context.Context, annotationID string) error {
	if err := s.client.Delete(ctx, "/v1/annotations/"+url.PathEscape(annotationID), nil, nil); err != nil {
		return s.fail("delete annotation", err)
	}
	return nil
}

// fail logs the failure, emits exactly one user notification, and re-wraps
// the error with the user-facing message while preserving the original
// status and payload so callers can still branch on status.
func (s *Service) fail(op string, err error) error {
	apiErr, ok := backend.AsAPIError(err)

	status := 0
	var payload any
	if ok {
		status = apiErr.StatusCode
		payload = apiErr.Payload
	}
	msg := userMessage(status, err)

	s.logger.Error("backend call failed",
		"op", op,
		"status", status,
		"err", err,
	)
	if s.notify != nil {
		s.notify(msg)
	}

	return &backend.APIError{
		StatusCode: status,
		Message:    msg,
		Payload:    payload,
		Err:        err,
	}
}

// userMessage maps a failure status to a fixed user-facing message, falling
// back to the underlying message for unmapped statuses.
func userMessage(status int, err error) string {
	switch {
	case status == http.StatusUnauthorized:
		return "Authentication failed. Check your API key."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment and try again."
	case status >= http.StatusInternalServerError:
		return "The Signal Harvester backend is currently unavailable. Please try again later."
	}
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "Request failed. Please try again."
}

func signalQuery(f model.SignalFilter) map[string]any {
	q := map[string]any{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Source != "" {
		q["source"] = f.Source
	}
	if f.MinScore > 0 {
		q["min_score"] = fmt.Sprintf("%g", f.MinScore)
	}
	if f.Offset > 0 {
		q["offset"] = f.Offset
	}
	if f.Limit > 0 {
		q["limit"] = f.Limit
	}
	return q
}

func artifactQuery(f model.ArtifactFilter) map[string]any {
	q := map[string]any{}
	if f.SignalID != "" {
		q["signal_id"] = f.SignalID
	}
	if f.Kind != "" {
		q["kind"] = f.Kind
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Offset > 0 {
		q["offset"] = f.Offset
	}
	if f.Limit > 0 {
		q["limit"] = f.Limit
	}
	return q
}

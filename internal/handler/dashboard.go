// Package handler exposes the dashboard HTTP API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"signal-harvester-go/internal/backend"
	"signal-harvester-go/internal/harvester"
	"signal-harvester-go/internal/model"
)

// DashboardHandler serves the dashboard data endpoints.
type DashboardHandler struct {
	service *harvester.Service
	logger  *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(svc *harvester.Service, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  logger.With("component", "dashboard_handler"),
	}
}

// Signals lists discovery signals.
func (h *DashboardHandler) Signals(c echo.Context) error {
	filter := model.SignalFilter{
		Category: c.QueryParam("category"),
		Source:   c.QueryParam("source"),
		MinScore: queryFloat(c, "min_score"),
		Offset:   queryInt(c, "offset"),
		Limit:    queryInt(c, "limit"),
	}

	list, err := h.service.Signals(c.Request().Context(), filter)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Artifacts lists research artifacts.
func (h *DashboardHandler) Artifacts(c echo.Context) error {
	filter := model.ArtifactFilter{
		SignalID: c.QueryParam("signal_id"),
		Kind:     c.QueryParam("kind"),
		Status:   c.QueryParam("status"),
		Offset:   queryInt(c, "offset"),
		Limit:    queryInt(c, "limit"),
	}

	list, err := h.service.Artifacts(c.Request().Context(), filter)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// TrendingTopics lists trending topics.
func (h *DashboardHandler) TrendingTopics(c echo.Context) error {
	list, err := h.service.TrendingTopics(c.Request().Context(), queryInt(c, "window_hours"), queryInt(c, "limit"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// EntityRelationships returns the relationship graph around an entity.
func (h *DashboardHandler) EntityRelationships(c echo.Context) error {
	graph, err := h.service.EntityRelationships(c.Request().Context(), c.Param("id"), queryInt(c, "depth"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, graph)
}

// Overview returns the dashboard landing-page panels.
func (h *DashboardHandler) Overview(c echo.Context) error {
	overview, err := h.service.Overview(c.Request().Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}

// CreateAnnotation attaches a note to a signal or artifact.
func (h *DashboardHandler) CreateAnnotation(c echo.Context) error {
	var a model.Annotation
	if err := c.Bind(&a); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid annotation body"})
	}
	if a.TargetID == "" || a.Body == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "target_id and body are required"})
	}

	created, err := h.service.CreateAnnotation(c.Request().Context(), a)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateArtifactStatus moves an artifact through its review workflow.
func (h *DashboardHandler) UpdateArtifactStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status is required"})
	}

	updated, err := h.service.UpdateArtifactStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteAnnotation removes a note.
func (h *DashboardHandler) DeleteAnnotation(c echo.Context) error {
	if err := h.service.DeleteAnnotation(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapError translates service failures into JSON error responses. Backend
// HTTP statuses pass through; everything else maps to a gateway error.
func (h *DashboardHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("dashboard request failed",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if apiErr, ok := backend.AsAPIError(err); ok {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return c.JSON(status, map[string]any{
			"error":   apiErr.Message,
			"details": apiErr.Payload,
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "backend request timed out",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "backend request failed",
	})
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func queryFloat(c echo.Context, name string) float64 {
	v, err := strconv.ParseFloat(c.QueryParam(name), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

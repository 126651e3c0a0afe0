package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, dash *DashboardHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/statusz", health.Statusz)

	api := e.Group("/api/v1")
	api.GET("/overview", dash.Overview)
	api.GET("/signals", dash.Signals)
	api.GET("/artifacts", dash.Artifacts)
	api.GET("/topics/trending", dash.TrendingTopics)
	api.GET("/entities/:id/relationships", dash.EntityRelationships)
	api.POST("/annotations", dash.CreateAnnotation)
	api.DELETE("/annotations/:id", dash.DeleteAnnotation)
	api.PATCH("/artifacts/:id/status", dash.UpdateArtifactStatus)
}

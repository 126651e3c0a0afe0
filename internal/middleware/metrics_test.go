package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"signal-harvester-go/internal/metrics"
)

func TestMetricsMiddleware_RecordsRequests(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/v1/signals", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200", "/api/v1"))
	if got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestMetricsMiddleware_EchoHTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/v1/signals", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// The *echo.HTTPError code must be used, not the unwritten response status.
	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "503", "/api/v1"))
	if got != 1 {
		t.Errorf("requests_total{503} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_UnknownPathBounded(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/totally/unknown", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "404", "other"))
	if got != 1 {
		t.Errorf("requests_total{other} = %v, want 1", got)
	}
}

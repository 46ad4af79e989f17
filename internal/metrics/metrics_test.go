package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware)
	e.GET("/items/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", m.Handler())

	for _, path := range []string{"/items/1", "/items/2"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")))

	m.Auth("login", "success")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("login", "success")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_http_requests_total")
	assert.Contains(t, rec.Body.String(), `status="404"`)
}

func TestAuth_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Auth("login", "failure") })
}

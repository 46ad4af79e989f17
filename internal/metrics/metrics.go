// Package metrics exposes Prometheus metrics for the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts requests by method, route and status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration records request latency by method and route.
	RequestDuration *prometheus.HistogramVec
	// AuthOutcomes counts signup, login and logout results.
	AuthOutcomes *prometheus.CounterVec
}

// New builds the metrics on a private registry so that several servers (and
// tests) can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Signup, login and logout attempts by outcome",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.AuthOutcomes)
	return m
}

// Middleware records every request under its route pattern, not the raw path.
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else {
				status = http.StatusInternalServerError
			}
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Auth records the outcome of an authentication action.
func (m *Metrics) Auth(action, outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
}

// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route template and status code",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leadflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method", "route"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leadflow",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "API requests currently being served",
		},
	)
)

// Metrics records request counts and latencies per route template.
// Requests whose path is in skip (the scrape endpoint, health probes) are not observed.
// Paths that matched no route are folded into a single "unmatched" label.
func Metrics(skip ...string) fiber.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		if _, ok := skipped[c.Path()]; ok {
			return c.Next()
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		route := unmatchedRoute
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" && status != fiber.StatusNotFound {
			route = r.Path
		}

		method := c.Method()
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return err
	}
}

package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/toozej/fuzic/internal/types"
)

// Metrics holds the prometheus collectors exported on /metrics. It also receives
// playlist operation outcomes from the aggregator.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	OperationsTotal     *prometheus.CounterVec
	TracksAddedTotal    *prometheus.CounterVec
	RefreshesTotal      *prometheus.CounterVec
	RateLimitedRequests prometheus.Counter
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuzic_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuzic_http_request_duration_seconds",
				Help:    "Time spent handling HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuzic_playlist_operations_total",
				Help: "Total number of playlist operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		TracksAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuzic_tracks_added_total",
				Help: "Total number of tracks written to new playlists",
			},
			[]string{"operation"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuzic_credential_refreshes_total",
				Help: "Total number of access token refreshes",
			},
			[]string{"result"},
		),
		RateLimitedRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fuzic_rate_limited_requests_total",
				Help: "Total number of requests rejected by the per-session rate limiter",
			},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.OperationsTotal,
		m.TracksAddedTotal,
		m.RefreshesTotal,
		m.RateLimitedRequests,
	)
	return m
}

func (m *Metrics) CredentialsRefreshed(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) OperationCompleted(op string, tracksAdded int) {
	m.OperationsTotal.WithLabelValues(op, "success").Inc()
	m.TracksAddedTotal.WithLabelValues(op).Add(float64(tracksAdded))
}

func (m *Metrics) OperationFailed(op string, err error) {
	m.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, types.ErrValidation):
		return "invalid"
	case errors.Is(err, types.ErrNoTracksFound):
		return "no_tracks"
	case errors.Is(err, types.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, types.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "error"
	}
}

// middleware records request counts and latency by matched route.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

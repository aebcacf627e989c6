package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsRegistry = prometheus.NewRegistry()

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskdeck",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	tokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Name:      "token_refreshes_total",
		Help:      "Refresh token exchanges, by outcome.",
	}, []string{"outcome"})

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskdeck",
		Name:      "ws_connections",
		Help:      "Open notification websocket connections.",
	})

	notificationsPushedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Name:      "notifications_pushed_total",
		Help:      "Notification frames written to websocket clients.",
	})

	reaperPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Name:      "reaper_purged_total",
		Help:      "Expired refresh tokens deleted by the reaper.",
	})
)

func init() {
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequestDuration,
		httpRequestsTotal,
		tokenRefreshesTotal,
		wsConnections,
		notificationsPushedTotal,
		reaperPurgedTotal,
	)
}

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method
		duration := time.Since(start).Seconds()

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}

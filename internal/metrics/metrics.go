package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "habitpact",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	partnershipTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "partnerships",
			Name:      "transitions_total",
			Help:      "Partnership lifecycle transitions by target state.",
		},
		[]string{"transition"},
	)

	mirrorResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "mirroring",
			Name:      "runs_total",
			Help:      "Habit mirroring runs by outcome.",
		},
		[]string{"outcome"},
	)

	nudgeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "nudges",
			Name:      "attempts_total",
			Help:      "Nudge attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notificationResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Notification dispatches by kind and result.",
		},
		[]string{"kind", "result"},
	)

	progressSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "habitpact",
			Subsystem: "progress",
			Name:      "subscribers",
			Help:      "Live progress feed subscriptions in this process.",
		},
	)

	progressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitpact",
			Subsystem: "progress",
			Name:      "events_total",
			Help:      "Progress change events delivered to the local feed.",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		partnershipTransitions,
		mirrorResults,
		nudgeResults,
		notificationResults,
		progressSubscribers,
		progressEvents,
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency using the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordTransition(transition string) {
	partnershipTransitions.WithLabelValues(transition).Inc()
}

func RecordMirror(outcome string) {
	mirrorResults.WithLabelValues(outcome).Inc()
}

func RecordNudge(outcome string) {
	nudgeResults.WithLabelValues(outcome).Inc()
}

func RecordNotification(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationResults.WithLabelValues(kind, result).Inc()
}

func SubscriberAdded()   { progressSubscribers.Inc() }
func SubscriberRemoved() { progressSubscribers.Dec() }

func RecordProgressEvent(eventType string) {
	progressEvents.WithLabelValues(eventType).Inc()
}

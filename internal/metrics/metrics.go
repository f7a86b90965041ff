// Package metrics holds the Prometheus collectors for casefile.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)

	httpRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-address rate limiter.",
		},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Intake submissions by outcome.",
		},
		[]string{"result"},
	)

	derivePasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casefile",
			Subsystem: "intake",
			Name:      "derive_passes",
			Help:      "Pipeline passes needed to reach a fixed point.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		httpRateLimited,
		submissions,
		derivePasses,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRateLimited counts a request turned away by the rate limiter.
func RecordRateLimited() {
	httpRateLimited.Inc()
}

// Submission outcomes.
const (
	SubmitCreated = "created"
	SubmitInvalid = "invalid"
	SubmitFailed  = "failed"
)

// RecordSubmission counts one intake submission attempt.
func RecordSubmission(result string) {
	submissions.WithLabelValues(result).Inc()
}

// RecordDerive records how many passes a derivation took.
func RecordDerive(passes int) {
	derivePasses.Observe(float64(passes))
}

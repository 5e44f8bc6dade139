package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	contestMetricsOnce sync.Once
	contestRegistry    *ContestdMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// handler activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakecurate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and route.",
			}, []string{"module", "route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakecurate",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, route, and status code.",
			}, []string{"module", "route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakecurate",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakecurate",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records a finished request.
func (m *moduleMetrics) Observe(module, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module = labelOr(module, "unknown")
	route = labelOr(route, "unknown")
	outcome := "ok"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, route, statusLabel(status)).Inc()
	}
	m.requests.WithLabelValues(module, route, outcome).Inc()
	m.latency.WithLabelValues(module, route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(module, "unknown"), labelOr(reason, "unspecified")).Inc()
}

// ContestdMetrics wraps collectors tracking contest engine health.
type ContestdMetrics struct {
	operations       *prometheus.CounterVec
	closeLatency     prometheus.Histogram
	transferFailures *prometheus.CounterVec
	pauseEngaged     prometheus.Gauge
	activeContests   prometheus.Gauge
}

// Contestd exposes the metrics registry for contestd.
func Contestd() *ContestdMetrics {
	contestMetricsOnce.Do(func() {
		contestRegistry = &ContestdMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakecurate",
				Subsystem: "contestd",
				Name:      "operations_total",
				Help:      "Contest operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			closeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "stakecurate",
				Subsystem: "contestd",
				Name:      "close_duration_seconds",
				Help:      "Latency distribution for contest settlement including transfer dispatch.",
				Buckets:   prometheus.DefBuckets,
			}),
			transferFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakecurate",
				Subsystem: "contestd",
				Name:      "transfer_failures_total",
				Help:      "Outbound transfers that failed after state was committed.",
			}, []string{"reason"}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakecurate",
				Subsystem: "contestd",
				Name:      "pause_engaged",
				Help:      "Indicates whether the contest pause guard is active (1) or not (0).",
			}),
			activeContests: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakecurate",
				Subsystem: "contestd",
				Name:      "active_contests",
				Help:      "Number of contests accepting stakes at the last scrape of the engine.",
			}),
		}
		prometheus.MustRegister(
			contestRegistry.operations,
			contestRegistry.closeLatency,
			contestRegistry.transferFailures,
			contestRegistry.pauseEngaged,
			contestRegistry.activeContests,
		)
	})
	return contestRegistry
}

// RecordOperation counts an engine call. A nil error is recorded as "ok".
func (m *ContestdMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(labelOr(op, "unknown"), outcome).Inc()
}

// ObserveClose records the latency of a close call.
func (m *ContestdMetrics) ObserveClose(d time.Duration) {
	if m == nil {
		return
	}
	m.closeLatency.Observe(d.Seconds())
}

// RecordTransferFailure increments the failure counter for the transfer reason.
func (m *ContestdMetrics) RecordTransferFailure(reason string) {
	if m == nil {
		return
	}
	m.transferFailures.WithLabelValues(labelOr(reason, "unspecified")).Inc()
}

// SetPause toggles the pause_engaged gauge.
func (m *ContestdMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

// SetActive records the number of open contests.
func (m *ContestdMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.activeContests.Set(float64(n))
}

func labelOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return strconv.Itoa(status)
	default:
		return "2xx"
	}
}

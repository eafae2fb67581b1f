package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "picoctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "picoctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	decodedPackages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "picoctl",
			Subsystem: "decoder",
			Name:      "packages_total",
			Help:      "Response lines decoded, by package type and success.",
		},
		[]string{"device", "type", "success"},
	)
	failedFields = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "picoctl",
			Subsystem: "decoder",
			Name:      "field_failures_total",
			Help:      "Data fields that failed to decode, by reason.",
		},
		[]string{"device", "reason"},
	)
	bursts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "picoctl",
			Subsystem: "session",
			Name:      "bursts_total",
			Help:      "Measurement bursts, by outcome.",
		},
		[]string{"device", "outcome"},
	)
	burstDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "picoctl",
			Subsystem: "session",
			Name:      "burst_duration_seconds",
			Help:      "Burst duration from start marker to terminal marker.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"device", "outcome"},
	)
	transportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "picoctl",
			Subsystem: "session",
			Name:      "transport_errors_total",
			Help:      "Transport level interruptions, by kind.",
		},
		[]string{"device", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			decodedPackages, failedFields,
			bursts, burstDuration, transportErrors,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPackage(device, packageType string, success bool) {
	RegisterMetrics()
	decodedPackages.WithLabelValues(device, packageType, strconv.FormatBool(success)).Inc()
}

func RecordFieldFailure(device, reason string) {
	RegisterMetrics()
	failedFields.WithLabelValues(device, reason).Inc()
}

func RecordBurst(device, outcome string, duration time.Duration) {
	RegisterMetrics()
	bursts.WithLabelValues(device, outcome).Inc()
	burstDuration.WithLabelValues(device, outcome).Observe(duration.Seconds())
}

func RecordTransportError(device, kind string) {
	RegisterMetrics()
	transportErrors.WithLabelValues(device, kind).Inc()
}

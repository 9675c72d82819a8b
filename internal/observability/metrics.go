package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shmframe"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	negotiations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "negotiations_total",
			Help:      "Geometry negotiations by outcome.",
		},
		[]string{"outcome"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "notifications_total",
			Help:      "Inbound control messages by relevance.",
		},
		[]string{"relevance"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "frames_decoded_total",
			Help:      "Frames delivered to the caller by camera layout.",
		},
		[]string{"layout"},
	)
	framesDrained = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "frames_drained_total",
			Help:      "Decoded frames discarded by drain-to-latest.",
		},
	)
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "decode_failures_total",
			Help:      "Frame decode failures by kind.",
		},
		[]string{"kind"},
	)
	decodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "decode_duration_seconds",
			Help:      "Time spent in one decode call including drained frames.",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			negotiations, notifications,
			framesDecoded, framesDrained, decodeFailures, decodeDuration,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordNegotiation(success bool) {
	RegisterMetrics()
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	negotiations.WithLabelValues(outcome).Inc()
}

// RecordNotification counts one control message; relevance is "image",
// "not_relevant" or "invalid".
func RecordNotification(relevance string) {
	RegisterMetrics()
	notifications.WithLabelValues(relevance).Inc()
}

func RecordFrameDecoded(layout string, drained int, duration time.Duration) {
	RegisterMetrics()
	framesDecoded.WithLabelValues(layout).Inc()
	if drained > 0 {
		framesDrained.Add(float64(drained))
	}
	decodeDuration.Observe(duration.Seconds())
}

func RecordDecodeFailure(kind string) {
	RegisterMetrics()
	decodeFailures.WithLabelValues(kind).Inc()
}

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
			Namespace: "rndcctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rndcctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rndcctl",
			Subsystem: "session",
			Name:      "packets_total",
			Help:      "Signed packets sent and received.",
		},
		[]string{"direction"},
	)
	sessionBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rndcctl",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Raw transport bytes sent and received.",
		},
		[]string{"direction"},
	)
	sessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rndcctl",
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Session failures by kind.",
		},
		[]string{"kind"},
	)
	sessionHandshake = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rndcctl",
			Subsystem: "session",
			Name:      "handshake_duration_seconds",
			Help:      "Time from probe to nonce.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rndcctl",
			Subsystem: "session",
			Name:      "active",
			Help:      "Open rndc sessions.",
		},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rndcctl",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Round trip of one rndc command.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "success"},
	)
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionPackets,
			sessionBytes,
			sessionErrors,
			sessionHandshake,
			sessionsActive,
			commandDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPacket(direction string) {
	RegisterMetrics()
	sessionPackets.WithLabelValues(direction).Inc()
}

func RecordTransportBytes(direction string, size int) {
	RegisterMetrics()
	sessionBytes.WithLabelValues(direction).Add(float64(size))
}

func RecordSessionError(kind string) {
	RegisterMetrics()
	sessionErrors.WithLabelValues(kind).Inc()
}

func RecordHandshake(duration time.Duration) {
	RegisterMetrics()
	sessionHandshake.Observe(duration.Seconds())
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordCommand(command string, duration time.Duration, success bool) {
	RegisterMetrics()
	commandDuration.WithLabelValues(command, strconv.FormatBool(success)).Observe(duration.Seconds())
}

package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/stream"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "framer",
			Name:      "packets_total",
			Help:      "Fully processed packets by command and result.",
		},
		[]string{"command", "result"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "framer",
			Name:      "errors_total",
			Help:      "Framing errors by reason.",
		},
		[]string{"reason"},
	)
	deliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "transport",
			Name:      "deliveries_total",
			Help:      "Byte chunks delivered to sessions.",
		},
	)
	bytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "transport",
			Name:      "received_bytes_total",
			Help:      "Bytes delivered to sessions.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mxprint",
			Subsystem: "session",
			Name:      "active",
			Help:      "Open sessions.",
		},
	)
	sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "session",
			Name:      "closed_total",
			Help:      "Closed sessions by cause.",
		},
		[]string{"cause"},
	)
	repliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Replies notified to peers by command.",
		},
		[]string{"command"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mxprint",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mxprint",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsTotal,
			framingErrors,
			deliveries,
			bytesReceived,
			sessionsActive,
			sessionsClosed,
			repliesTotal,
			httpRequests,
			httpDuration,
		)
	})
}

// FramingReason maps a parser error onto a metric label.
func FramingReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stream.ErrMagicMismatch):
		return "magic"
	case errors.Is(err, frame.ErrChecksumMismatch) && errors.Is(err, frame.ErrTerminatorMismatch):
		return "checksum_terminator"
	case errors.Is(err, frame.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, frame.ErrTerminatorMismatch):
		return "terminator"
	default:
		return "other"
	}
}

func RecordEvent(ev stream.Event) {
	RegisterMetrics()
	packetsTotal.WithLabelValues(ev.Command().String(), ev.Kind.String()).Inc()
	if ev.Err != nil {
		framingErrors.WithLabelValues(FramingReason(ev.Err)).Inc()
	}
}

func RecordDelivery(n int) {
	RegisterMetrics()
	deliveries.Inc()
	bytesReceived.Add(float64(n))
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed(cause string) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionsClosed.WithLabelValues(cause).Inc()
}

func RecordReply(cmd protocol.Command) {
	RegisterMetrics()
	repliesTotal.WithLabelValues(cmd.String()).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

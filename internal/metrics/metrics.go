package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bolo"

// Frame drop reasons.
const (
	DropNotStreaming = "not_streaming"
	DropQueueFull    = "queue_full"
)

// Metrics contains the instrumentation shared by the capture engine, the
// transcription session and the controller.
type Metrics struct {
	// Capture
	ActiveCaptures  prometheus.Gauge
	CapturesStarted prometheus.Counter
	BlocksCaptured  prometheus.Counter

	// Transport
	ActiveSockets    prometheus.Gauge
	SocketsOpened    prometheus.Counter
	TransportErrors  *prometheus.CounterVec
	FramesSent       prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	MessagesReceived prometheus.Counter
	ParseFailures    prometheus.Counter
	Transcripts      prometheus.Counter

	// Sessions
	SessionsStarted prometheus.Counter
	SessionDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg. A nil reg falls back
// to the default prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ActiveCaptures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_captures",
			Help:      "Current number of running capture engines",
		}),
		CapturesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_started_total",
			Help:      "Total number of capture engine starts",
		}),
		BlocksCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_blocks_captured_total",
			Help:      "Total number of audio blocks delivered by the capture device",
		}),
		ActiveSockets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sockets",
			Help:      "Current number of open transcription sockets",
		}),
		SocketsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sockets_opened_total",
			Help:      "Total number of transcription sockets opened",
		}),
		TransportErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total number of transport errors by operation",
		}, []string{"op"}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of audio frames written to the socket",
		}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of audio frames dropped before transmission",
		}, []string{"reason"}),
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound protocol messages",
		}),
		ParseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Total number of inbound messages dropped as malformed or unrecognized",
		}),
		Transcripts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total number of transcript events received",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of listening sessions started",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of listening sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and
// callers that do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice concierge relay
type Metrics struct {
	// Relay lifecycle metrics
	ActiveRelays  prometheus.Gauge
	RelaysStarted prometheus.Counter
	RelaysStopped prometheus.Counter
	RelayDuration prometheus.Histogram

	// Media metrics, labelled by direction (inbound/outbound)
	FramesRelayed *prometheus.CounterVec
	BytesRelayed  *prometheus.CounterVec

	// Error metrics
	DecodeErrors    prometheus.Counter
	TransportErrors *prometheus.CounterVec

	// Conversation metrics
	FunctionCalls        prometheus.Counter
	FunctionCallFailures prometheus.Counter
	BargeIns             prometheus.Counter

	// VAD metrics
	SpeechFrames  prometheus.Counter
	SilenceFrames prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ActiveRelays: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_active_relays",
			Help: "Current number of active call relays",
		}),
		RelaysStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_relays_started_total",
			Help: "Total number of relays started",
		}),
		RelaysStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_relays_stopped_total",
			Help: "Total number of relays stopped",
		}),
		RelayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "concierge_relay_duration_seconds",
			Help:    "Duration of call relays in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		FramesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_frames_relayed_total",
			Help: "Total number of audio frames relayed",
		}, []string{"direction"}),
		BytesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_bytes_relayed_total",
			Help: "Total number of audio bytes relayed",
		}, []string{"direction"}),

		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_decode_errors_total",
			Help: "Total number of malformed media payloads dropped",
		}),
		TransportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_transport_errors_total",
			Help: "Total number of transport failures",
		}, []string{"leg"}),

		FunctionCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_function_calls_total",
			Help: "Total number of tool calls requested by the model",
		}),
		FunctionCallFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_function_call_failures_total",
			Help: "Total number of tool calls that returned an error",
		}),
		BargeIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_barge_ins_total",
			Help: "Total number of caller interruptions handled",
		}),

		SpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_speech_frames_total",
			Help: "Total number of inbound frames classified as speech",
		}),
		SilenceFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_silence_frames_total",
			Help: "Total number of inbound frames classified as silence",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concierge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordRelayStarted increments the relay counters for a new call
func (m *Metrics) RecordRelayStarted() {
	m.RelaysStarted.Inc()
	m.ActiveRelays.Inc()
}

// RecordRelayStopped records the end of a call and its duration
func (m *Metrics) RecordRelayStopped(durationSeconds float64) {
	m.RelaysStopped.Inc()
	m.ActiveRelays.Dec()
	m.RelayDuration.Observe(durationSeconds)
}

// RecordFrameIn records one inbound frame of the given size
func (m *Metrics) RecordFrameIn(sizeBytes int) {
	m.FramesRelayed.WithLabelValues("inbound").Inc()
	m.BytesRelayed.WithLabelValues("inbound").Add(float64(sizeBytes))
}

// RecordFrameOut records one outbound frame of the given size
func (m *Metrics) RecordFrameOut(sizeBytes int) {
	m.FramesRelayed.WithLabelValues("outbound").Inc()
	m.BytesRelayed.WithLabelValues("outbound").Add(float64(sizeBytes))
}

// RecordDecodeError increments the malformed payload counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordTransportError records a transport failure on the given leg
func (m *Metrics) RecordTransportError(leg string) {
	m.TransportErrors.WithLabelValues(leg).Inc()
}

// RecordFunctionCall records a tool invocation and whether it failed
func (m *Metrics) RecordFunctionCall(failed bool) {
	m.FunctionCalls.Inc()
	if failed {
		m.FunctionCallFailures.Inc()
	}
}

// RecordBargeIn increments the caller interruption counter
func (m *Metrics) RecordBargeIn() {
	m.BargeIns.Inc()
}

// RecordVADFrame records the speech classification of one inbound frame
func (m *Metrics) RecordVADFrame(isSpeech bool) {
	if isSpeech {
		m.SpeechFrames.Inc()
	} else {
		m.SilenceFrames.Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

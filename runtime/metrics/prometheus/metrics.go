// Package prometheus exports realtime session metrics to Prometheus. The
// collectors are fed from the session event bus by MetricsListener.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roboshen"

var (
	// sessionsActive is the number of sessions currently CONNECTED.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		},
	)

	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of session state transitions",
		},
		[]string{"from", "to"},
	)

	sessionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of classified session failures",
		},
		[]string{"kind"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"}, // status: started, success, error
	)

	toolAcksDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_acks_dropped_total",
			Help:      "Tool acknowledgements discarded because their session had closed",
		},
		[]string{"tool"},
	)

	audioSegmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_segments_scheduled_total",
			Help:      "Total number of playback segments scheduled",
		},
	)

	audioScheduledSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_scheduled_seconds_total",
			Help:      "Total seconds of model speech scheduled for playback",
		},
	)

	audioChunksDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_dropped_total",
			Help:      "Inbound audio chunks that could not be played",
		},
		[]string{"reason"},
	)

	interruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of playback interruptions",
		},
	)

	segmentsInterruptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_interrupted_total",
			Help:      "Playback segments stopped by interruptions",
		},
	)

	captureFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_total",
			Help:      "Microphone frames sent to the model",
		},
	)

	transcriptEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Transcript entries appended",
		},
		[]string{"role", "kind"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionTransitionsTotal,
		sessionErrorsTotal,
		toolCallDuration,
		toolCallsTotal,
		toolAcksDroppedTotal,
		audioSegmentsTotal,
		audioScheduledSeconds,
		audioChunksDroppedTotal,
		interruptionsTotal,
		segmentsInterruptedTotal,
		captureFramesTotal,
		transcriptEntriesTotal,
	}
)

// Collectors returns every session collector, for registration with a
// custom registry.
func Collectors() []prometheus.Collector {
	return append([]prometheus.Collector(nil), allMetrics...)
}

// RecordTransition records a state change. Entering CONNECTED raises the
// active gauge and leaving it lowers the gauge.
func RecordTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(from, to).Inc()
	if to == stateConnected {
		sessionsActive.Inc()
	}
	if from == stateConnected {
		sessionsActive.Dec()
	}
}

// RecordSessionError records a classified failure.
func RecordSessionError(kind string) {
	sessionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordToolStart records a dispatched invocation.
func RecordToolStart(toolName string) {
	toolCallsTotal.WithLabelValues(toolName, statusStarted).Inc()
}

// RecordToolCall records a finished invocation.
func RecordToolCall(toolName, status string, durationSeconds float64) {
	toolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
}

// RecordAckDropped records an acknowledgement for a closed session.
func RecordAckDropped(toolName string) {
	toolAcksDroppedTotal.WithLabelValues(toolName).Inc()
}

// RecordSegment records a scheduled playback segment.
func RecordSegment(durationSeconds float64) {
	audioSegmentsTotal.Inc()
	audioScheduledSeconds.Add(durationSeconds)
}

// RecordChunkDropped records an unplayable chunk.
func RecordChunkDropped(reason string) {
	audioChunksDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordInterruption records a playback flush.
func RecordInterruption(stopped int) {
	interruptionsTotal.Inc()
	if stopped > 0 {
		segmentsInterruptedTotal.Add(float64(stopped))
	}
}

// RecordCaptureFrames adds the frames a finished capture loop delivered.
func RecordCaptureFrames(frames uint64) {
	captureFramesTotal.Add(float64(frames))
}

// RecordTranscriptEntry records an appended entry.
func RecordTranscriptEntry(role, kind string) {
	transcriptEntriesTotal.WithLabelValues(role, kind).Inc()
}

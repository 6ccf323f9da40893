package prometheus

import (
	"github.com/AltairaLabs/roboshen/runtime/events"
)

// Status constants for metric labels.
const (
	statusStarted = "started"
	statusSuccess = "success"
	statusError   = "error"
)

// stateConnected mirrors session.StateConnected without importing the
// session package.
const stateConnected = "CONNECTED"

// MetricsListener records session events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch data := event.Data.(type) {
	case *events.StateChangedData:
		RecordTransition(data.From, data.To)
	case *events.SessionErrorData:
		RecordSessionError(data.Kind)
	case *events.ToolCallEventData:
		l.handleToolCall(event.Type, data)
	case *events.AudioEventData:
		l.handleAudio(event.Type, data)
	case *events.StreamInterruptedData:
		RecordInterruption(data.Stopped)
	case *events.CaptureStoppedData:
		RecordCaptureFrames(data.Frames)
	case *events.TranscriptEventData:
		RecordTranscriptEntry(data.Role, data.Kind)
	}
}

func (l *MetricsListener) handleToolCall(eventType events.EventType, data *events.ToolCallEventData) {
	//exhaustive:ignore
	switch eventType {
	case events.EventToolCallStarted:
		RecordToolStart(data.ToolName)
	case events.EventToolCallCompleted:
		RecordToolCall(data.ToolName, statusSuccess, data.Duration.Seconds())
	case events.EventToolCallFailed:
		RecordToolCall(data.ToolName, statusError, data.Duration.Seconds())
	case events.EventToolAckDropped:
		RecordAckDropped(data.ToolName)
	default:
	}
}

func (l *MetricsListener) handleAudio(eventType events.EventType, data *events.AudioEventData) {
	//exhaustive:ignore
	switch eventType {
	case events.EventAudioScheduled:
		RecordSegment(data.Duration.Seconds())
	case events.EventAudioDropped:
		RecordChunkDropped(data.Reason)
	default:
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}

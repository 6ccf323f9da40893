package events

import "time"

// EventType identifies the type of event emitted by the runtime.
type EventType string

const (
	// EventSessionStateChanged marks a controller state transition.
	EventSessionStateChanged EventType = "session.state_changed"
	// EventSessionError marks a classified session failure.
	EventSessionError EventType = "session.error"

	// EventToolCallStarted marks tool call start.
	EventToolCallStarted EventType = "tool.call.started"
	// EventToolCallCompleted marks tool call completion.
	EventToolCallCompleted EventType = "tool.call.completed"
	// EventToolCallFailed marks tool call failure.
	EventToolCallFailed EventType = "tool.call.failed"
	// EventToolAckDropped marks an acknowledgement for a closed session.
	EventToolAckDropped EventType = "tool.ack.dropped"

	// EventAudioScheduled marks a decoded chunk handed to playback.
	EventAudioScheduled EventType = "audio.scheduled"
	// EventAudioDropped marks an inbound chunk that could not be decoded.
	EventAudioDropped EventType = "audio.dropped"
	// EventStreamInterrupted marks playback flushed by an interruption.
	EventStreamInterrupted EventType = "stream.interrupted"
	// EventCaptureStopped marks the end of a capture loop.
	EventCaptureStopped EventType = "capture.stopped"

	// EventTranscriptAppended marks a new transcript entry.
	EventTranscriptAppended EventType = "transcript.appended"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a runtime event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Epoch     uint64
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// StateChangedData describes a state transition.
type StateChangedData struct {
	baseEventData
	From string `json:"from"`
	To   string `json:"to"`
}

// SessionErrorData describes a classified failure.
type SessionErrorData struct {
	baseEventData
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ToolCallEventData contains tool call details.
type ToolCallEventData struct {
	baseEventData
	ToolName string        `json:"tool_name"`
	CallID   string        `json:"call_id"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// AudioEventData describes a playback event.
type AudioEventData struct {
	baseEventData
	SegmentID uint64        `json:"segment_id,omitempty"`
	Start     time.Duration `json:"start,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// StreamInterruptedData records how many segments were stopped.
type StreamInterruptedData struct {
	baseEventData
	Stopped int `json:"stopped"`
}

// CaptureStoppedData records capture totals.
type CaptureStoppedData struct {
	baseEventData
	Frames uint64 `json:"frames"`
}

// TranscriptEventData mirrors an appended transcript entry.
type TranscriptEventData struct {
	baseEventData
	EntryID string `json:"entry_id"`
	Role    string `json:"role"`
	Kind    string `json:"kind"`
	Seq     uint64 `json:"seq"`
	Payload string `json:"payload"`
}

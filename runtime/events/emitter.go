package events

import "time"

// Emitter provides helpers for publishing runtime events with shared metadata.
// A nil Emitter, or one without a bus, discards events.
type Emitter struct {
	bus       *EventBus
	sessionID string
	epoch     uint64
}

// NewEmitter creates a new event emitter.
func NewEmitter(bus *EventBus, sessionID string, epoch uint64) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, epoch: epoch}
}

// SessionID returns the session the emitter is bound to.
func (e *Emitter) SessionID() string {
	if e == nil {
		return ""
	}
	return e.sessionID
}

func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Epoch:     e.epoch,
		Data:      data,
	})
}

// StateChanged emits session.state_changed.
func (e *Emitter) StateChanged(from, to string) {
	e.emit(EventSessionStateChanged, &StateChangedData{From: from, To: to})
}

// SessionError emits session.error.
func (e *Emitter) SessionError(kind, message string) {
	e.emit(EventSessionError, &SessionErrorData{Kind: kind, Message: message})
}

// ToolCallStarted emits tool.call.started.
func (e *Emitter) ToolCallStarted(toolName, callID string) {
	e.emit(EventToolCallStarted, &ToolCallEventData{ToolName: toolName, CallID: callID})
}

// ToolCallCompleted emits tool.call.completed.
func (e *Emitter) ToolCallCompleted(toolName, callID string, duration time.Duration) {
	e.emit(EventToolCallCompleted, &ToolCallEventData{ToolName: toolName, CallID: callID, Duration: duration})
}

// ToolCallFailed emits tool.call.failed.
func (e *Emitter) ToolCallFailed(toolName, callID string, err error, duration time.Duration) {
	data := &ToolCallEventData{ToolName: toolName, CallID: callID, Duration: duration}
	if err != nil {
		data.Error = err.Error()
	}
	e.emit(EventToolCallFailed, data)
}

// ToolAckDropped emits tool.ack.dropped.
func (e *Emitter) ToolAckDropped(toolName, callID string) {
	e.emit(EventToolAckDropped, &ToolCallEventData{ToolName: toolName, CallID: callID})
}

// AudioScheduled emits audio.scheduled.
func (e *Emitter) AudioScheduled(segmentID uint64, start, duration time.Duration) {
	e.emit(EventAudioScheduled, &AudioEventData{SegmentID: segmentID, Start: start, Duration: duration})
}

// AudioDropped emits audio.dropped.
func (e *Emitter) AudioDropped(bytes int, reason string) {
	e.emit(EventAudioDropped, &AudioEventData{Bytes: bytes, Reason: reason})
}

// StreamInterrupted emits stream.interrupted.
func (e *Emitter) StreamInterrupted(stopped int) {
	e.emit(EventStreamInterrupted, &StreamInterruptedData{Stopped: stopped})
}

// CaptureStopped emits capture.stopped.
func (e *Emitter) CaptureStopped(frames uint64) {
	e.emit(EventCaptureStopped, &CaptureStoppedData{Frames: frames})
}

// TranscriptAppended emits transcript.appended.
func (e *Emitter) TranscriptAppended(data *TranscriptEventData) {
	e.emit(EventTranscriptAppended, data)
}

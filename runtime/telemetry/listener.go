package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/roboshen/runtime/events"
)

// State names as published in StateChangedData.
const (
	stateIdle       = "IDLE"
	stateConnecting = "CONNECTING"
	stateError      = "ERROR"
)

// spanEntry tracks an in-flight span and its context.
type spanEntry struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// sessionState tracks the root span for a session.
type sessionState struct {
	spanEntry
	errMsg string
}

// OTelEventListener converts session events into OTel spans in real time.
// A session span opens when the session starts connecting and ends when it
// returns to IDLE or ERROR; each tool invocation gets a child span.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	parent   context.Context          //nolint:containedctx // parent for session spans
	sessions map[string]*sessionState // sessionID → root span + ctx
	inflight map[string]*spanEntry    // "<sessionID>/<callID>" → tool span
}

// NewOTelEventListener creates a listener that creates OTel spans from session events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		parent:   context.Background(),
		sessions: make(map[string]*sessionState),
		inflight: make(map[string]*spanEntry),
	}
}

// WithParent parents every subsequent session span under the span in ctx.
func (l *OTelEventListener) WithParent(ctx context.Context) *OTelEventListener {
	l.mu.Lock()
	l.parent = ctx
	l.mu.Unlock()
	return l
}

// Listener returns the OnEvent method as an events.Listener.
func (l *OTelEventListener) Listener() events.Listener {
	return l.OnEvent
}

// OnEvent handles a single session event. It is safe for concurrent use and
// can be passed to EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	switch data := evt.Data.(type) {
	case *events.StateChangedData:
		l.handleTransition(evt, data)
	case *events.SessionErrorData:
		l.withSession(evt.SessionID, func(ss *sessionState) {
			ss.errMsg = data.Kind
			ss.span.SetAttributes(attribute.String("error.kind", data.Kind))
			ss.span.AddEvent("session.error", trace.WithAttributes(
				attribute.String("error.kind", data.Kind),
				attribute.String("error.message", data.Message),
			))
		})
	case *events.ToolCallEventData:
		l.handleTool(evt, data)
	case *events.StreamInterruptedData:
		l.sessionEvent(evt.SessionID, "playback.interrupted",
			attribute.Int("playback.stopped_segments", data.Stopped))
	case *events.AudioEventData:
		if evt.Type == events.EventAudioDropped {
			l.sessionEvent(evt.SessionID, "audio.dropped",
				attribute.String("audio.drop_reason", data.Reason),
				attribute.Int("audio.bytes", data.Bytes))
		}
	case *events.CaptureStoppedData:
		l.withSession(evt.SessionID, func(ss *sessionState) {
			ss.span.SetAttributes(attribute.Int64("capture.frames", int64(data.Frames))) //nolint:gosec // frame counts fit
		})
	case *events.TranscriptEventData:
		l.sessionEvent(evt.SessionID, "transcript.appended",
			attribute.String("transcript.role", data.Role),
			attribute.String("transcript.kind", data.Kind))
	}
}

// Close ends every span still open, marking them as abandoned.
func (l *OTelEventListener) Close() {
	l.mu.Lock()
	sessions, inflight := l.sessions, l.inflight
	l.sessions = make(map[string]*sessionState)
	l.inflight = make(map[string]*spanEntry)
	l.mu.Unlock()

	for _, e := range inflight {
		e.span.SetStatus(codes.Error, "abandoned")
		e.span.End()
	}
	for _, ss := range sessions {
		ss.span.SetStatus(codes.Error, "abandoned")
		ss.span.End()
	}
}

func (l *OTelEventListener) handleTransition(evt *events.Event, data *events.StateChangedData) {
	switch data.To {
	case stateConnecting:
		l.startSession(evt)
	case stateIdle, stateError:
		l.endSession(evt.SessionID)
	default:
		l.sessionEvent(evt.SessionID, "session.state",
			attribute.String("session.from", data.From),
			attribute.String("session.to", data.To))
	}
}

func (l *OTelEventListener) startSession(evt *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[evt.SessionID]; ok {
		return
	}
	ctx, span := l.tracer.Start(l.parent, "roboshen.session",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("session.id", evt.SessionID),
			attribute.Int64("session.epoch", int64(evt.Epoch)), //nolint:gosec // epochs fit
		),
	)
	l.sessions[evt.SessionID] = &sessionState{spanEntry: spanEntry{span: span, ctx: ctx}}
}

func (l *OTelEventListener) endSession(sessionID string) {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	if ok {
		delete(l.sessions, sessionID)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	if ss.errMsg != "" {
		ss.span.SetStatus(codes.Error, ss.errMsg)
	} else {
		ss.span.SetStatus(codes.Ok, "")
	}
	ss.span.End()
}

// sessionCtx returns the context for the session (to parent child spans).
// Falls back to the listener parent if the session has already ended.
func (l *OTelEventListener) sessionCtx(sessionID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ss, ok := l.sessions[sessionID]; ok {
		return ss.ctx
	}
	return l.parent
}

func (l *OTelEventListener) withSession(sessionID string, fn func(*sessionState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ss, ok := l.sessions[sessionID]; ok {
		fn(ss)
	}
}

func (l *OTelEventListener) sessionEvent(sessionID, name string, attrs ...attribute.KeyValue) {
	l.withSession(sessionID, func(ss *sessionState) {
		ss.span.AddEvent(name, trace.WithAttributes(attrs...))
	})
}

// --- Tool ---

func toolKey(sessionID, callID string) string {
	return sessionID + "/" + callID
}

func (l *OTelEventListener) handleTool(evt *events.Event, data *events.ToolCallEventData) {
	//exhaustive:ignore
	switch evt.Type {
	case events.EventToolCallStarted:
		l.startTool(evt, data)
	case events.EventToolCallCompleted:
		l.endTool(evt.SessionID, data, "")
	case events.EventToolCallFailed:
		msg := data.Error
		if msg == "" {
			msg = "failed"
		}
		l.endTool(evt.SessionID, data, msg)
	case events.EventToolAckDropped:
		l.sessionEvent(evt.SessionID, "tool.ack_dropped",
			attribute.String("tool.name", data.ToolName),
			attribute.String("tool.call_id", data.CallID))
	default:
	}
}

func (l *OTelEventListener) startTool(evt *events.Event, data *events.ToolCallEventData) {
	parentCtx := l.sessionCtx(evt.SessionID)
	ctx, span := l.tracer.Start(parentCtx, "roboshen.tool."+data.ToolName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("tool.name", data.ToolName),
			attribute.String("tool.call_id", data.CallID),
		),
	)
	l.mu.Lock()
	l.inflight[toolKey(evt.SessionID, data.CallID)] = &spanEntry{span: span, ctx: ctx}
	l.mu.Unlock()
}

// endTool ends the tool span with an error status when errMsg is set.
func (l *OTelEventListener) endTool(sessionID string, data *events.ToolCallEventData, errMsg string) {
	key := toolKey(sessionID, data.CallID)
	l.mu.Lock()
	entry, ok := l.inflight[key]
	if ok {
		delete(l.inflight, key)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	entry.span.SetAttributes(attribute.Int64("tool.duration_ms", data.Duration.Milliseconds()))
	if errMsg != "" {
		entry.span.SetStatus(codes.Error, errMsg)
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
	entry.span.End()
}

package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
	"github.com/AltairaLabs/roboshen/runtime/tools"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

const reasonMalformed = "malformed"

// ErrClosedBeforeReady is the acquisition failure for a connection that
// closed before the service acknowledged the session setup.
var ErrClosedBeforeReady = fmt.Errorf("%w: connection closed before the session was ready", live.ErrUnreachable)

type resources struct {
	in   audio.InputDevice
	out  audio.OutputDevice
	conn live.Conn
}

func (a *resources) release(s *liveSession) {
	closeAll(s.ctx, a.in, a.out, a.conn)
}

// acquire opens the speaker, the microphone and the live connection, in
// that order, off the loop. On failure whatever was opened is closed
// before the error is posted.
func (c *Controller) acquire(s *liveSession, setup *live.Setup) {
	res, err := c.open(s, setup)
	if !c.post(func() { c.acquired(s, res, err) }) && res != nil {
		res.release(s)
	}
}

func (c *Controller) open(s *liveSession, setup *live.Setup) (*resources, error) {
	res := &resources{}
	var err error

	if res.out, err = c.cfg.Backend.OpenOutput(s.ctx, c.cfg.PlaybackRate); err != nil {
		return nil, err
	}
	if res.in, err = c.cfg.Backend.OpenInput(s.ctx, c.cfg.CaptureRate, c.cfg.FrameSize); err != nil {
		res.release(s)
		return nil, err
	}
	if res.conn, err = c.cfg.Connector.Connect(s.ctx, setup); err != nil {
		res.release(s)
		return nil, err
	}
	return res, nil
}

// acquired runs on the loop with the outcome of acquire.
func (c *Controller) acquired(s *liveSession, res *resources, err error) {
	if c.sess != s || s.ctx.Err() != nil {
		logger.DebugContext(s.ctx, "Discarding acquisition for a closed session")
		if res != nil {
			res.release(s)
		}
		return
	}
	if err != nil {
		c.fail(s, Classify(err, c.cfg.Printer))
		return
	}

	meter, err := audio.NewVoiceMeter(*c.cfg.VAD, c.cfg.CaptureRate)
	if err != nil {
		res.release(s)
		c.fail(s, Classify(err, c.cfg.Printer))
		return
	}

	s.in, s.out, s.conn = res.in, res.out, res.conn
	s.meter = meter
	s.sched = audio.NewPlaybackScheduler(s.out, audio.WithSpeakingTolerance(c.cfg.SpeakingTolerance))
	go c.forward(s)
}

// forward relays connection events to the loop until the connection's
// event channel closes.
func (c *Controller) forward(s *liveSession) {
	for ev := range s.conn.Events() {
		if !c.post(func() { c.handleEvent(s, ev) }) {
			return
		}
	}
}

func (c *Controller) handleEvent(s *liveSession, ev live.Event) {
	if c.sess != s {
		logger.DebugContext(s.ctx, "Ignoring event for a closed session", "event", ev.Type.String())
		return
	}
	switch ev.Type {
	case live.EventOpen:
		c.ready(s)
	case live.EventMessage:
		if ev.Message != nil {
			c.handleMessage(s, ev.Message)
		}
	case live.EventError:
		if c.state == StateConnecting {
			c.fail(s, Classify(ev.Err, c.cfg.Printer))
			return
		}
		c.fail(s, TransportDropped(ev.Err, c.cfg.Printer))
	case live.EventClose:
		switch c.state {
		case StateConnecting:
			c.fail(s, Classify(ErrClosedBeforeReady, c.cfg.Printer))
		case StateError:
		default:
			c.transition(s, StateIdle)
		}
		c.teardown(s)
	}
}

// ready moves a connecting session to CONNECTED and starts capture.
func (c *Controller) ready(s *liveSession) {
	if s.torn || s.ctx.Err() != nil || c.state != StateConnecting {
		return
	}
	c.transition(s, StateConnected)

	s.capture = audio.Attach(s.in, c.cfg.FrameSize, c.sink(s), func(err error) {
		go c.post(func() { c.captureFailed(s, err) })
	})

	if s.greet {
		if err := s.conn.SendText(c.cfg.Printer.Text(i18n.GreetingPrompt)); err != nil {
			logger.WarnContext(s.ctx, "Greeting not sent", "error", err)
		}
	}
}

// sink encodes each captured frame and sends it. It runs on the capture
// goroutine and touches only the connection and the meter.
func (c *Controller) sink(s *liveSession) audio.FrameSink {
	rate := c.cfg.CaptureRate
	return func(frame []float32) {
		blob := audio.EncodeFrame(frame, rate)
		s.meter.Analyze(frame)
		if err := s.conn.SendRealtimeInput(live.Media{Data: blob.Data, MIMEType: blob.MIMEType}); err != nil &&
			!errors.Is(err, live.ErrClosed) {
			logger.DebugContext(s.ctx, "Dropping captured frame", "error", err)
		}
	}
}

func (c *Controller) captureFailed(s *liveSession, err error) {
	if c.sess != s || s.torn {
		return
	}
	c.fail(s, TransportDropped(err, c.cfg.Printer))
}

// handleMessage applies one inbound message. An interruption is handled
// before anything else the message carries.
func (c *Controller) handleMessage(s *liveSession, m *live.ServerMessage) {
	if m.Interrupted {
		c.interrupt()
	}
	if len(m.ToolCalls) > 0 {
		c.dispatch(s, tools.InvocationsFrom(m.ToolCalls))
	}
	for _, chunk := range m.Audio {
		if !c.play(s, chunk) {
			return
		}
	}
	s.inText.WriteString(m.InputTranscript)
	s.outText.WriteString(m.OutputTranscript)
	if m.TurnComplete {
		c.appendTranscripts(s)
	}
}

// play decodes a chunk and schedules it. Malformed chunks are dropped. A
// playback device failure ends the session and reports false.
func (c *Controller) play(s *liveSession, chunk live.Media) bool {
	if s.sched == nil {
		return true
	}
	buf, err := audio.DecodeChunk(chunk.Data, c.cfg.PlaybackRate, 1)
	switch {
	case errors.Is(err, audio.ErrEmptyChunk):
		return true
	case err != nil:
		logger.WarnContext(s.ctx, "Dropping malformed audio chunk", "bytes", len(chunk.Data), "error", err)
		s.emitter.AudioDropped(len(chunk.Data), reasonMalformed)
		return true
	}

	seg, err := s.sched.Schedule(buf)
	if err != nil {
		c.fail(s, TransportDropped(err, c.cfg.Printer))
		return false
	}
	s.emitter.AudioScheduled(seg.ID, seg.Start, seg.Duration)
	return true
}

// dispatch starts a tool batch. Thinking stays asserted until every
// invocation of the session has been acknowledged.
func (c *Controller) dispatch(s *liveSession, batch []tools.Invocation) {
	if c.cfg.OnToolCall != nil {
		c.cfg.OnToolCall(batch)
	}
	c.mode = ModeContent
	c.thinking = true
	s.pending += len(batch)
	for _, inv := range batch {
		s.emitter.ToolCallStarted(inv.Name, inv.ID)
	}

	go c.cfg.Dispatcher.Dispatch(s.toolCtx, batch, func(r tools.Result) {
		if !c.post(func() { c.toolDone(s, r) }) {
			c.acknowledge(s, r)
		}
	})
}

// toolDone records a finished invocation and acknowledges it on the
// connection it came from, even if that session has ended.
func (c *Controller) toolDone(s *liveSession, r tools.Result) {
	c.appendTranscript(s, transcript.RoleModel, r.Outcome.Kind, r.Outcome.Payload)
	if r.Status == tools.StatusCompleted {
		s.emitter.ToolCallCompleted(r.Invocation.Name, r.Invocation.ID, r.Duration)
	} else {
		s.emitter.ToolCallFailed(r.Invocation.Name, r.Invocation.ID, r.Err, r.Duration)
	}
	c.acknowledge(s, r)

	if c.sess != s {
		return
	}
	if s.pending--; s.pending <= 0 {
		s.pending = 0
		c.thinking = false
	}
}

func (c *Controller) acknowledge(s *liveSession, r tools.Result) {
	err := s.conn.SendToolResponse(r.Response())
	switch {
	case err == nil:
	case errors.Is(err, live.ErrClosed):
		logger.DebugContext(s.toolCtx, "Dropping acknowledgement for closed session",
			"tool", r.Invocation.Name, "invocation_id", r.Invocation.ID)
		s.emitter.ToolAckDropped(r.Invocation.Name, r.Invocation.ID)
	default:
		logger.WarnContext(s.toolCtx, "Acknowledgement failed",
			"tool", r.Invocation.Name, "invocation_id", r.Invocation.ID, "error", err)
	}
}

// interrupt flushes playback if anything is queued.
func (c *Controller) interrupt() {
	s := c.sess
	if s == nil || s.sched == nil {
		return
	}
	if s.sched.Active() == 0 && !s.sched.IsSpeaking() {
		return
	}
	stopped := s.sched.Flush()
	c.thinking = false
	s.emitter.StreamInterrupted(stopped)
	logger.DebugContext(s.ctx, "Playback interrupted", "stopped", stopped)
}

// appendTranscripts moves buffered transcriptions into the transcript.
func (c *Controller) appendTranscripts(s *liveSession) {
	if text := strings.TrimSpace(s.inText.String()); text != "" {
		c.appendTranscript(s, transcript.RoleUser, transcript.KindText, text)
	}
	if text := strings.TrimSpace(s.outText.String()); text != "" {
		c.appendTranscript(s, transcript.RoleModel, transcript.KindText, text)
	}
	s.inText.Reset()
	s.outText.Reset()
}

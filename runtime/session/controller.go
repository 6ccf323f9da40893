// Package session implements the realtime voice session controller.
//
// A Controller owns one live session at a time. All state lives on a single
// event-loop goroutine: public methods are synchronous round trips into the
// loop, and device acquisition, transport events, capture failures and tool
// results are posted back to it tagged with the session they belong to.
// Results for a session that has since been torn down or superseded are
// ignored, which is how a ready signal arriving after teardown is handled.
//
// Usage:
//
//	ctrl, err := session.New(session.Config{Backend: backend, Connector: connector})
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	updates, cancel := ctrl.Subscribe()
//	defer cancel()
//	ctrl.Start(true)
//	for snap := range updates {
//		render(snap)
//	}
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// Controller drives the IDLE → CONNECTING → CONNECTED → (IDLE | ERROR)
// lifecycle of a realtime voice session.
type Controller struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	cmds chan func()
	msgs chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once

	// subMu also orders stores to last against Subscribe.
	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
	last  atomic.Pointer[Snapshot]

	// Loop-owned.
	state    State
	epoch    uint64
	appErr   *AppError
	thinking bool
	mode     Mode
	sess     *liveSession
	lastKey  snapshotKey
}

// liveSession is everything acquired for one epoch.
type liveSession struct {
	epoch   uint64
	id      string
	ctx     context.Context // canceled at teardown
	cancel  context.CancelFunc
	toolCtx context.Context // controller lifetime, session log fields
	emitter *events.Emitter
	greet   bool

	in      audio.InputDevice
	out     audio.OutputDevice
	conn    live.Conn
	sched   *audio.PlaybackScheduler
	capture *audio.CaptureLoop
	meter   *audio.VoiceMeter

	pending int
	torn    bool

	inText  strings.Builder
	outText strings.Builder
}

// New validates cfg and starts the controller loop.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	if _, err := audio.NewVoiceMeter(*cfg.VAD, cfg.CaptureRate); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		cmds:   make(chan func()),
		msgs:   make(chan func(), postBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		subs:   make(map[chan Snapshot]struct{}),
		state:  StateIdle,
		mode:   ModeVoice,
	}
	initial := c.snapshot()
	c.last.Store(&initial)
	c.lastKey = keyOf(&initial)

	ticks := cfg.Ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(cfg.TickInterval)
		ticks = ticker.C
	}
	go c.run(ticks, ticker)
	return c, nil
}

func (c *Controller) run(ticks <-chan time.Time, ticker *time.Ticker) {
	defer close(c.done)
	if ticker != nil {
		defer ticker.Stop()
	}
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.cmds:
			fn()
		case fn := <-c.msgs:
			fn()
		case <-ticks:
		}
		c.publish()
	}
}

// do runs fn on the loop and waits for it. It reports false once the
// controller is closed.
func (c *Controller) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case c.cmds <- func() { defer close(finished); fn() }:
	case <-c.done:
		return false
	}
	<-finished
	return true
}

// post queues fn on the loop without waiting for it to run.
func (c *Controller) post(fn func()) bool {
	select {
	case c.msgs <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Start opens a session. When greet is set the model is asked to greet the
// user once the session is ready. Start is a no-op while a session is
// connecting or connected.
func (c *Controller) Start(greet bool) {
	c.do(func() { c.start(greet) })
}

// Retry clears the current error and starts a new session.
func (c *Controller) Retry() {
	c.do(func() {
		c.appErr = nil
		c.start(false)
	})
}

// Stop ends the current session, if any, and returns to IDLE.
func (c *Controller) Stop() {
	c.do(c.stop)
}

// Interrupt silences playback. It does nothing when nothing is playing and
// never cancels in-flight tool calls.
func (c *Controller) Interrupt() {
	c.do(c.interrupt)
}

// ClearError drops the current error without changing state.
func (c *Controller) ClearError() {
	c.do(func() { c.appErr = nil })
}

// Snapshot returns the current projection.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	if c.do(func() { snap = c.snapshot() }) {
		return snap
	}
	return *c.last.Load()
}

// Subscribe returns a channel of projections. Updates are coalesced: a
// slow reader only sees the latest one. The channel is closed by cancel or
// Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	ch <- *c.last.Load()
	if c.subs == nil {
		close(ch)
	} else {
		c.subs[ch] = struct{}{}
	}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// Close ends any session, stops the loop and closes subscriptions. In-flight
// tool calls are canceled. Safe to call more than once.
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.do(c.stop)
		close(c.quit)
		<-c.done
		c.cancel()

		c.subMu.Lock()
		for ch := range c.subs {
			close(ch)
		}
		c.subs = nil
		c.subMu.Unlock()
	})
	return nil
}

func (c *Controller) start(greet bool) {
	if c.state == StateConnecting || c.state == StateConnected {
		logger.Debug("Session start ignored", "state", string(c.state))
		return
	}
	c.appErr = nil
	c.epoch++

	s := &liveSession{epoch: c.epoch, id: uuid.NewString(), greet: greet}
	s.toolCtx = logger.WithSession(c.ctx, s.id, s.epoch)
	s.ctx, s.cancel = context.WithCancel(s.toolCtx)
	s.emitter = events.NewEmitter(c.cfg.Bus, s.id, s.epoch)

	c.sess = s
	c.mode = ModeVoice
	c.transition(s, StateConnecting)

	setup := c.cfg.setup()
	go c.acquire(s, setup)
}

func (c *Controller) stop() {
	s := c.sess
	if s == nil {
		return
	}
	c.transition(s, StateIdle)
	c.teardown(s)
}

// transition records a state change. Every change is logged and emitted.
func (c *Controller) transition(s *liveSession, to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	logger.SessionTransition(s.ctx, string(from), string(to))
	s.emitter.StateChanged(string(from), string(to))
}

// fail records err, moves to ERROR and releases the session.
func (c *Controller) fail(s *liveSession, err *AppError) {
	c.appErr = err
	logger.ErrorContext(s.ctx, "Session failed", "kind", string(err.Kind), "error", err.Cause)
	s.emitter.SessionError(string(err.Kind), err.Message)
	c.transition(s, StateError)
	c.teardown(s)
}

// teardown releases everything s acquired. It runs at most once per
// session; tool calls already dispatched keep running.
func (c *Controller) teardown(s *liveSession) {
	if s.torn {
		return
	}
	s.torn = true
	s.cancel()

	if s.capture != nil {
		s.capture.Detach()
		s.emitter.CaptureStopped(s.capture.Frames())
	}
	if s.sched != nil {
		s.sched.Flush()
	}
	c.appendTranscripts(s)
	closeAll(s.ctx, s.in, s.out, s.conn)
	s.pending = 0

	if c.sess == s {
		c.sess = nil
		c.thinking = false
	}
}

type closer interface {
	Close() error
}

func closeAll(ctx context.Context, resources ...closer) {
	for _, r := range resources {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			logger.DebugContext(ctx, "Close failed during teardown", "error", err)
		}
	}
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		State:    c.state,
		History:  c.cfg.Transcript.NewestFirst(),
		Error:    c.appErr,
		Thinking: c.thinking,
		Mode:     ModeSleeping,
		Epoch:    c.epoch,
	}
	if s := c.sess; s != nil && c.state == StateConnected {
		snap.Mode = c.mode
		if s.sched != nil {
			snap.Speaking = s.sched.IsSpeaking()
		}
		if s.meter != nil {
			snap.InputLevel = s.meter.Level()
			snap.UserSpeaking = s.meter.Speaking()
		}
	}
	snap.Avatar = avatarFor(snap.State, snap.Thinking, snap.Speaking)
	return snap
}

// publish pushes the projection to subscribers when it changed.
func (c *Controller) publish() {
	snap := c.snapshot()
	key := keyOf(&snap)
	if key == c.lastKey {
		return
	}
	c.lastKey = key

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.last.Store(&snap)
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// appendTranscript records an entry and announces it.
func (c *Controller) appendTranscript(s *liveSession, role transcript.Role, kind transcript.Kind, payload string) {
	entry := c.cfg.Transcript.Append(role, kind, payload)
	s.emitter.TranscriptAppended(transcript.EventData(entry))
}

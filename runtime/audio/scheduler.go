package audio

import (
	"sync"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// DefaultSpeakingTolerance is the trailing window before the cursor during
// which the scheduler no longer reports speech, so that back-to-back
// segments do not flicker the flag.
const DefaultSpeakingTolerance = 100 * time.Millisecond

// Segment describes one buffer placed on the output timeline.
type Segment struct {
	ID       uint64
	Start    time.Duration
	Duration time.Duration
}

// End returns the clock position at which the segment finishes.
func (s Segment) End() time.Duration {
	return s.Start + s.Duration
}

// PlaybackScheduler queues decoded buffers back to back on an OutputDevice.
// It owns the next-start cursor and the set of active segments; both are
// only changed by Schedule, natural segment completion and Flush.
type PlaybackScheduler struct {
	out       OutputDevice
	tolerance time.Duration

	mu     sync.Mutex
	cursor time.Duration
	nextID uint64
	active map[uint64]Voice
}

// SchedulerOption configures a PlaybackScheduler.
type SchedulerOption func(*PlaybackScheduler)

// WithSpeakingTolerance overrides DefaultSpeakingTolerance.
func WithSpeakingTolerance(d time.Duration) SchedulerOption {
	return func(s *PlaybackScheduler) {
		s.tolerance = d
	}
}

// NewPlaybackScheduler creates a scheduler for out.
func NewPlaybackScheduler(out OutputDevice, opts ...SchedulerOption) *PlaybackScheduler {
	s := &PlaybackScheduler{
		out:       out,
		tolerance: DefaultSpeakingTolerance,
		active:    make(map[uint64]Voice),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule enqueues buf at max(cursor, now) and advances the cursor by its
// duration. If the device refuses the buffer the cursor is left untouched.
func (s *PlaybackScheduler) Schedule(buf *Buffer) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursor
	if now := s.out.Now(); now > start {
		start = now
	}

	s.nextID++
	seg := Segment{ID: s.nextID, Start: start, Duration: buf.Duration()}

	voice, err := s.out.Play(buf, start, func() { s.ended(seg.ID) })
	if err != nil {
		return Segment{}, err
	}

	s.cursor = seg.End()
	s.active[seg.ID] = voice
	logger.Trace("Segment scheduled", "segment", seg.ID, "start", seg.Start, "duration", seg.Duration)
	return seg, nil
}

// ended removes a naturally completed segment. It may run on a device
// goroutine or synchronously from the clock owner.
func (s *PlaybackScheduler) ended(id uint64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// IsSpeaking reports whether audio is still audibly queued: at least one
// segment is active and the clock has not reached the tolerance window
// before the cursor.
func (s *PlaybackScheduler) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0 && s.out.Now() < s.cursor-s.tolerance
}

// Flush stops every active segment, empties the active set and resets the
// cursor to zero. It returns the number of segments stopped.
func (s *PlaybackScheduler) Flush() int {
	s.mu.Lock()
	voices := make([]Voice, 0, len(s.active))
	for id, v := range s.active {
		voices = append(voices, v)
		delete(s.active, id)
	}
	s.cursor = 0
	s.mu.Unlock()
	logger.Trace("Playback flushed", "segments", len(voices))

	// Stop outside the lock: devices may call back into ended.
	for _, v := range voices {
		v.Stop()
	}
	return len(voices)
}

// Cursor returns the clock position at which the next segment would start
// if the device clock were behind it.
func (s *PlaybackScheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Active returns the number of segments scheduled and not yet finished.
func (s *PlaybackScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

package audio

import (
	"context"
	"sort"
	"sync"
	"time"
)

// VirtualOutput is an OutputDevice driven by a manual clock. Nothing is
// rendered; segments finish when Advance moves the clock past their end.
type VirtualOutput struct {
	rate int

	mu     sync.Mutex
	now    time.Duration
	voices []*virtualVoice
	closed bool
}

// PlayedSegment records one Play call on a VirtualOutput.
type PlayedSegment struct {
	Start    time.Duration
	Duration time.Duration
	Stopped  bool
	Ended    bool
}

type virtualVoice struct {
	out     *VirtualOutput
	start   time.Duration
	dur     time.Duration
	onEnded func()
	stopped bool
	ended   bool
}

// NewVirtualOutput creates a silent output device at rate.
func NewVirtualOutput(rate int) *VirtualOutput {
	return &VirtualOutput{rate: rate}
}

// SampleRate implements OutputDevice.
func (o *VirtualOutput) SampleRate() int { return o.rate }

// Now implements OutputDevice.
func (o *VirtualOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Play implements OutputDevice. onEnded never runs synchronously.
func (o *VirtualOutput) Play(buf *Buffer, at time.Duration, onEnded func()) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrDeviceClosed
	}
	v := &virtualVoice{out: o, start: at, dur: buf.Duration(), onEnded: onEnded}
	o.voices = append(o.voices, v)
	return v, nil
}

// Advance moves the clock forward and fires onEnded, in end order, for every
// voice that finished on the way.
func (o *VirtualOutput) Advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	var done []*virtualVoice
	for _, v := range o.voices {
		if !v.stopped && !v.ended && v.start+v.dur <= o.now {
			v.ended = true
			done = append(done, v)
		}
	}
	o.mu.Unlock()

	sort.Slice(done, func(i, j int) bool {
		return done[i].start+done[i].dur < done[j].start+done[j].dur
	})
	for _, v := range done {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
}

// Played returns every segment handed to Play, in call order.
func (o *VirtualOutput) Played() []PlayedSegment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PlayedSegment, len(o.voices))
	for i, v := range o.voices {
		out[i] = PlayedSegment{Start: v.start, Duration: v.dur, Stopped: v.stopped, Ended: v.ended}
	}
	return out
}

// Closed reports whether Close was called.
func (o *VirtualOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Close implements OutputDevice.
func (o *VirtualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (v *virtualVoice) Stop() {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	if !v.ended {
		v.stopped = true
	}
}

// VirtualInput is an InputDevice fed by Push. Read blocks until a full
// frame of pushed samples is available.
type VirtualInput struct {
	rate int

	mu       sync.Mutex
	cond     chan struct{}
	pending  []float32
	reads    int
	discards int
	closed   bool
}

// NewVirtualInput creates an input device at rate.
func NewVirtualInput(rate int) *VirtualInput {
	return &VirtualInput{rate: rate, cond: make(chan struct{})}
}

// SampleRate implements InputDevice.
func (in *VirtualInput) SampleRate() int { return in.rate }

// Push appends samples to the capture stream.
func (in *VirtualInput) Push(samples []float32) {
	in.mu.Lock()
	in.pending = append(in.pending, samples...)
	in.wakeLocked()
	in.mu.Unlock()
}

func (in *VirtualInput) wakeLocked() {
	close(in.cond)
	in.cond = make(chan struct{})
}

// Read implements InputDevice.
func (in *VirtualInput) Read(ctx context.Context, frame []float32) error {
	for {
		in.mu.Lock()
		if in.closed {
			in.mu.Unlock()
			return ErrDeviceClosed
		}
		if len(in.pending) >= len(frame) {
			copy(frame, in.pending)
			in.pending = in.pending[len(frame):]
			in.reads++
			in.mu.Unlock()
			return nil
		}
		wait := in.cond
		in.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Discard implements InputDevice.
func (in *VirtualInput) Discard() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return ErrDeviceClosed
	}
	in.pending = nil
	in.discards++
	return nil
}

// Discards returns the number of Discard calls.
func (in *VirtualInput) Discards() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.discards
}

// Reads returns the number of frames delivered so far.
func (in *VirtualInput) Reads() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reads
}

// Closed reports whether Close was called.
func (in *VirtualInput) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// Close implements InputDevice.
func (in *VirtualInput) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		in.wakeLocked()
	}
	return nil
}

// VirtualBackend hands out virtual devices and records them. InputErr and
// OutputErr, when set, make the corresponding Open call fail.
type VirtualBackend struct {
	InputErr  error
	OutputErr error

	mu      sync.Mutex
	inputs  []*VirtualInput
	outputs []*VirtualOutput
}

// OpenInput implements Backend.
func (b *VirtualBackend) OpenInput(_ context.Context, rate, _ int) (InputDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InputErr != nil {
		return nil, b.InputErr
	}
	in := NewVirtualInput(rate)
	b.inputs = append(b.inputs, in)
	return in, nil
}

// OpenOutput implements Backend.
func (b *VirtualBackend) OpenOutput(_ context.Context, rate int) (OutputDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OutputErr != nil {
		return nil, b.OutputErr
	}
	out := NewVirtualOutput(rate)
	b.outputs = append(b.outputs, out)
	return out, nil
}

// Inputs returns every input device opened so far.
func (b *VirtualBackend) Inputs() []*VirtualInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*VirtualInput(nil), b.inputs...)
}

// Outputs returns every output device opened so far.
func (b *VirtualBackend) Outputs() []*VirtualOutput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*VirtualOutput(nil), b.outputs...)
}

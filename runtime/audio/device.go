package audio

import (
	"context"
	"errors"
	"time"
)

// Standard audio sample rates for the realtime session.
const (
	SampleRate24kHz = 24000 // model speech output
	SampleRate16kHz = 16000 // microphone capture

	// DefaultFrameSize is the number of samples per captured frame.
	DefaultFrameSize = 4096
)

var (
	// ErrPermissionDenied is returned by a Backend when microphone access is refused.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")
	// ErrDeviceNotFound is returned by a Backend when no suitable device exists.
	ErrDeviceNotFound = errors.New("audio: device not found")
	// ErrDeviceClosed is returned when a closed device is used.
	ErrDeviceClosed = errors.New("audio: device closed")
)

// InputDevice is an open capture stream producing mono samples.
type InputDevice interface {
	// SampleRate returns the capture rate in Hz.
	SampleRate() int
	// Read fills frame with the next len(frame) samples, blocking until they
	// are available or ctx is done.
	Read(ctx context.Context, frame []float32) error
	// Discard drops every sample captured so far, so the next Read returns
	// only audio that arrives after the call.
	Discard() error
	Close() error
}

// Voice is a handle to one scheduled buffer on an OutputDevice.
type Voice interface {
	// Stop silences the voice immediately. onEnded is not invoked for a
	// stopped voice.
	Stop()
}

// OutputDevice is an open playback context with its own clock.
type OutputDevice interface {
	SampleRate() int
	// Now returns the output clock, the position of the playhead since the
	// device was opened.
	Now() time.Duration
	// Play queues buf to start at the given clock position. onEnded is
	// called once when the buffer finishes playing naturally.
	Play(buf *Buffer, at time.Duration, onEnded func()) (Voice, error)
	Close() error
}

// Backend opens audio devices. Implementations report a refused microphone
// with ErrPermissionDenied and a missing device with ErrDeviceNotFound.
type Backend interface {
	OpenInput(ctx context.Context, rate, frameSize int) (InputDevice, error)
	OpenOutput(ctx context.Context, rate int) (OutputDevice, error)
}

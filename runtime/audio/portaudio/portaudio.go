// Package portaudio implements audio.Backend on top of PortAudio, giving the
// session access to the default microphone and speakers.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// Backend opens PortAudio default devices. Create it with New and release it
// with Close once no device is in use.
type Backend struct {
	mu     sync.Mutex
	closed bool
}

// New initializes PortAudio.
func New() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Backend{}, nil
}

// Close terminates PortAudio.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return portaudio.Terminate()
}

// OpenInput implements audio.Backend.
func (b *Backend) OpenInput(_ context.Context, rate, frameSize int) (audio.InputDevice, error) {
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), frameSize, buf)
	if err != nil {
		return nil, classify(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, classify(err)
	}

	logger.Debug("Opened capture device", "rate", rate, "frame_size", frameSize)
	return &input{stream: stream, buf: buf, rate: rate}, nil
}

// OpenOutput implements audio.Backend.
func (b *Backend) OpenOutput(_ context.Context, rate int) (audio.OutputDevice, error) {
	if _, err := portaudio.DefaultOutputDevice(); err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
	}

	out := newOutput(rate)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(out.period), out.period)
	if err != nil {
		return nil, classify(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, classify(err)
	}
	out.stream = stream

	go out.run()
	logger.Debug("Opened playback device", "rate", rate)
	return out, nil
}

// classify maps host errors onto the audio sentinels. Host APIs report a
// refused microphone in their own words, so this matches on the message.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not permitted"):
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	case errors.Is(err, portaudio.InvalidDevice), errors.Is(err, portaudio.DeviceUnavailable):
		return fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
	}
	return err
}

type input struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int

	mu      sync.Mutex
	pending []float32
	closed  bool
}

func (in *input) SampleRate() int { return in.rate }

// Read blocks on the stream until frame is full. Overflows are logged and
// otherwise ignored; a late frame is better than a dead microphone.
func (in *input) Read(ctx context.Context, frame []float32) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for len(in.pending) < len(frame) {
		if in.closed {
			return audio.ErrDeviceClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.stream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				return err
			}
			logger.Debug("Capture input overflowed")
		}
		in.pending = append(in.pending, in.buf...)
	}

	copy(frame, in.pending)
	in.pending = in.pending[len(frame):]
	return nil
}

// Discard restarts the stream, which drops whatever the host buffered while
// nobody was reading.
func (in *input) Discard() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return audio.ErrDeviceClosed
	}
	in.pending = in.pending[:0]
	if err := in.stream.Abort(); err != nil {
		return fmt.Errorf("abort capture stream: %w", err)
	}
	if err := in.stream.Start(); err != nil {
		return fmt.Errorf("restart capture stream: %w", err)
	}
	return nil
}

func (in *input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	_ = in.stream.Stop()
	return in.stream.Close()
}

package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// FrameSink receives each captured frame. The slice is reused for the next
// frame, so sinks must not retain it.
type FrameSink func(frame []float32)

// CaptureLoop pumps fixed-size frames from an InputDevice into a sink on its
// own goroutine until detached.
type CaptureLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	frames atomic.Uint64
}

// Attach starts reading frameSize-sample frames from in. Audio the device
// captured before Attach is discarded, never delivered. A read error other
// than cancellation is reported once through onError and ends the loop.
func Attach(in InputDevice, frameSize int, sink FrameSink, onError func(error)) *CaptureLoop {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &CaptureLoop{cancel: cancel, done: make(chan struct{})}

	err := in.Discard()
	go l.run(ctx, in, make([]float32, frameSize), sink, onError, err)
	return l
}

func (l *CaptureLoop) run(ctx context.Context, in InputDevice, frame []float32, sink FrameSink, onError func(error), discardErr error) {
	defer close(l.done)
	if discardErr != nil {
		if onError != nil {
			onError(discardErr)
		}
		return
	}
	for {
		err := in.Read(ctx, frame)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		l.frames.Add(1)
		sink(frame)
	}
}

// Frames returns the number of frames delivered to the sink.
func (l *CaptureLoop) Frames() uint64 {
	return l.frames.Load()
}

// Done is closed once the loop goroutine has exited.
func (l *CaptureLoop) Done() <-chan struct{} {
	return l.done
}

// Detach stops the loop and waits for it to exit. The device itself is not
// closed. Detach is safe to call more than once.
func (l *CaptureLoop) Detach() {
	l.once.Do(l.cancel)
	<-l.done
}

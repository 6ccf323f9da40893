package portaudio

import (
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// periodDuration is the amount of audio mixed and written per stream write.
const periodDuration = 20 * time.Millisecond

// output mixes scheduled voices into a blocking PortAudio stream. Its clock
// is the number of samples written so far.
type output struct {
	rate   int
	period []float32
	stream *portaudio.Stream

	mu      sync.Mutex
	written int64
	voices  map[*voice]struct{}
	closed  bool
	done    chan struct{}
}

type voice struct {
	out     *output
	start   int64
	samples []float32
	onEnded func()
}

func newOutput(rate int) *output {
	return &output{
		rate:   rate,
		period: make([]float32, int(periodDuration)*rate/int(time.Second)),
		voices: make(map[*voice]struct{}),
		done:   make(chan struct{}),
	}
}

func (o *output) SampleRate() int { return o.rate }

func (o *output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.toDuration(o.written)
}

func (o *output) toDuration(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(o.rate)
}

func (o *output) toSamples(d time.Duration) int64 {
	return int64(d) * int64(o.rate) / int64(time.Second)
}

func (o *output) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	buf, err := audio.ResampleBuffer(buf, o.rate)
	if err != nil {
		return nil, err
	}

	v := &voice{out: o, start: o.toSamples(at), samples: downmix(buf), onEnded: onEnded}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, audio.ErrDeviceClosed
	}
	// The clock may have moved on since the caller read Now.
	v.start = max(v.start, o.written)
	o.voices[v] = struct{}{}
	return v, nil
}

func downmix(buf *audio.Buffer) []float32 {
	if buf.Channels() == 1 {
		return buf.Data[0]
	}
	out := make([]float32, buf.Frames())
	scale := 1 / float32(buf.Channels())
	for _, ch := range buf.Data {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}

func (v *voice) Stop() {
	v.out.mu.Lock()
	delete(v.out.voices, v)
	v.out.mu.Unlock()
}

// run writes one period at a time until closed. Writes block for roughly a
// period, which paces the clock to the hardware.
func (o *output) run() {
	defer close(o.done)
	for {
		ended, ok := o.mix()
		if !ok {
			return
		}
		for _, fn := range ended {
			fn()
		}
		if err := o.stream.Write(); err != nil {
			logger.Debug("Playback write failed", "error", err)
		}
	}
}

// mix renders the next period into o.period and advances the clock. It
// returns the completion callbacks of voices that finished in this period.
func (o *output) mix() ([]func(), bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, false
	}

	from := o.written
	to := from + int64(len(o.period))
	clear(o.period)

	var ended []func()
	for v := range o.voices {
		end := v.start + int64(len(v.samples))
		lo := max(from, v.start)
		hi := min(to, end)
		for pos := lo; pos < hi; pos++ {
			o.period[pos-from] += v.samples[pos-v.start]
		}
		if end <= to {
			delete(o.voices, v)
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		}
	}
	o.written = to
	return ended, true
}

func (o *output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	clear(o.voices)
	o.mu.Unlock()

	<-o.done
	_ = o.stream.Stop()
	return o.stream.Close()
}

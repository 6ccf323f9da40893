package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// pcmBytesPerSample is the number of bytes per 16-bit PCM sample.
	pcmBytesPerSample = 2
	// pcmScale maps a normalized amplitude onto the int16 range.
	pcmScale = 32768.0

	pcmMIMEPrefix = "audio/pcm;rate="
)

var (
	// ErrMalformedChunk is returned when a chunk payload is not valid base64.
	ErrMalformedChunk = errors.New("audio: malformed chunk")
	// ErrEmptyChunk is returned when a chunk carries no complete sample frame.
	ErrEmptyChunk = errors.New("audio: empty chunk")
)

// Blob is an encoded audio payload ready for the wire.
type Blob struct {
	Data     string
	MIMEType string
}

// PCMMimeType returns the MIME descriptor for raw PCM16 at the given rate.
func PCMMimeType(rate int) string {
	return pcmMIMEPrefix + strconv.Itoa(rate)
}

// EncodeFrame quantizes normalized samples to little-endian PCM16 and
// base64-frames the bytes. Each sample is multiplied by 32768 and truncated
// toward zero; values outside the int16 range are clamped.
func EncodeFrame(samples []float32, rate int) Blob {
	raw := make([]byte, len(samples)*pcmBytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*pcmBytesPerSample:], uint16(quantize(s))) //nolint:gosec // PCM16 bit pattern
	}
	return Blob{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: PCMMimeType(rate),
	}
}

func quantize(s float32) int16 {
	v := math.Trunc(float64(s) * pcmScale)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Buffer is decoded, de-interleaved audio. Data holds one slice per channel.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NewMonoBuffer wraps a single channel of samples.
func NewMonoBuffer(rate int, samples []float32) *Buffer {
	return &Buffer{SampleRate: rate, Data: [][]float32{samples}}
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodeChunk reverses EncodeFrame for a chunk carrying the given rate and
// channel count. Invalid base64 yields ErrMalformedChunk. Trailing bytes that
// do not form a whole interleaved frame are discarded. A chunk without any
// complete frame yields ErrEmptyChunk.
func DecodeChunk(data string, rate, channels int) (*Buffer, error) {
	if rate < 1 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", rate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}

	frameBytes := pcmBytesPerSample * channels
	frames := len(raw) / frameBytes
	if frames == 0 {
		return nil, ErrEmptyChunk
	}

	buf := &Buffer{SampleRate: rate, Data: make([][]float32, channels)}
	for ch := range buf.Data {
		buf.Data[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*pcmBytesPerSample
			// #nosec G115 -- overflow is intentional for signed PCM conversion
			sample := int16(binary.LittleEndian.Uint16(raw[off:]))
			buf.Data[ch][i] = float32(sample) / pcmScale
		}
	}
	return buf, nil
}

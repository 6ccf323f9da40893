package audio

import "fmt"

// Resample converts mono samples from one rate to another using linear
// interpolation. It is used when a device cannot run at the session rate.
func Resample(input []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}

	n := len(input)
	if n == 0 {
		return []float32{}, nil
	}

	outLen := int(float64(n) * float64(toRate) / float64(fromRate))
	if outLen == 0 {
		return []float32{}, nil
	}

	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx >= n-1 {
			out[i] = input[n-1]
			continue
		}
		out[i] = input[idx] + frac*(input[idx+1]-input[idx])
	}
	return out, nil
}

// ResampleBuffer resamples every channel of buf to toRate.
func ResampleBuffer(buf *Buffer, toRate int) (*Buffer, error) {
	if buf.SampleRate == toRate {
		return buf, nil
	}
	out := &Buffer{SampleRate: toRate, Data: make([][]float32, len(buf.Data))}
	for ch, samples := range buf.Data {
		res, err := Resample(samples, buf.SampleRate, toRate)
		if err != nil {
			return nil, err
		}
		out.Data[ch] = res
	}
	return out, nil
}

// Package audio provides the sample-level plumbing of a realtime voice session:
// PCM16 wire encoding, gapless playback scheduling, microphone capture and
// voice activity metering.
//
// # Architecture
//
// Audio flows in two directions:
//
//  1. CaptureLoop reads fixed-size mono frames from an InputDevice and hands
//     each one to a FrameSink, which typically encodes it with EncodeFrame.
//  2. Model audio chunks are decoded with DecodeChunk and handed to a
//     PlaybackScheduler, which queues them back to back on an OutputDevice.
//
// Devices are opened through a Backend. The portaudio sub-package talks to
// real hardware; VirtualBackend drives everything from a manual clock so that
// scheduling can be exercised without sound cards or wall-clock time.
//
// # Usage Example
//
//	out, _ := backend.OpenOutput(ctx, audio.SampleRate24kHz)
//	sched := audio.NewPlaybackScheduler(out)
//
//	buf, err := audio.DecodeChunk(chunk.Data, audio.SampleRate24kHz, 1)
//	if err == nil {
//	    sched.Schedule(buf)
//	}
//
//	if userInterrupted {
//	    sched.Flush()
//	}
package audio

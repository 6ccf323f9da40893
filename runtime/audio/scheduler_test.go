package audio

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func samplesFor(d time.Duration, rate int) []float32 {
	return make([]float32, int(d*time.Duration(rate)/time.Second))
}

func TestPlaybackScheduler_BackToBack(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	first, err := s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(500*time.Millisecond, SampleRate24kHz)))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	second, _ := s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(250*time.Millisecond, SampleRate24kHz)))

	if first.Start != 0 {
		t.Errorf("first.Start = %v, want 0", first.Start)
	}
	if second.Start != first.End() {
		t.Errorf("second.Start = %v, want %v", second.Start, first.End())
	}
	if got := s.Cursor(); got != 750*time.Millisecond {
		t.Errorf("Cursor() = %v, want 750ms", got)
	}
	if s.Active() != 2 {
		t.Errorf("Active() = %d, want 2", s.Active())
	}
}

func TestPlaybackScheduler_StartsAtClockAfterGap(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(100*time.Millisecond, SampleRate24kHz)))
	out.Advance(time.Second)

	seg, _ := s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(100*time.Millisecond, SampleRate24kHz)))
	if seg.Start != time.Second {
		t.Errorf("Start = %v, want 1s", seg.Start)
	}
}

func TestPlaybackScheduler_NaturalEndRemovesSegment(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(200*time.Millisecond, SampleRate24kHz)))
	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(200*time.Millisecond, SampleRate24kHz)))

	out.Advance(200 * time.Millisecond)
	if s.Active() != 1 {
		t.Errorf("Active() = %d after first segment ended, want 1", s.Active())
	}
	out.Advance(200 * time.Millisecond)
	if s.Active() != 0 {
		t.Errorf("Active() = %d after all segments ended, want 0", s.Active())
	}
}

func TestPlaybackScheduler_IsSpeakingTolerance(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	if s.IsSpeaking() {
		t.Fatal("IsSpeaking() = true with nothing scheduled")
	}

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(time.Second, SampleRate24kHz)))
	if !s.IsSpeaking() {
		t.Error("IsSpeaking() = false right after scheduling")
	}

	out.Advance(850 * time.Millisecond)
	if !s.IsSpeaking() {
		t.Error("IsSpeaking() = false 150ms before the end")
	}

	out.Advance(100 * time.Millisecond)
	if s.IsSpeaking() {
		t.Error("IsSpeaking() = true inside the trailing tolerance")
	}
}

func TestPlaybackScheduler_ShortSegmentWithinTolerance(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out, WithSpeakingTolerance(0))

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(50*time.Millisecond, SampleRate24kHz)))
	if !s.IsSpeaking() {
		t.Error("IsSpeaking() = false with zero tolerance")
	}
}

func TestPlaybackScheduler_FlushTwoActive(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(time.Second, SampleRate24kHz)))
	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(time.Second, SampleRate24kHz)))
	out.Advance(300 * time.Millisecond)

	if n := s.Flush(); n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
	if s.IsSpeaking() {
		t.Error("IsSpeaking() = true after Flush")
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after Flush", s.Active())
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %v after Flush, want 0", s.Cursor())
	}
	for i, p := range out.Played() {
		if !p.Stopped {
			t.Errorf("segment %d not stopped", i)
		}
	}

	// Stopped voices never report natural completion.
	out.Advance(5 * time.Second)
	for i, p := range out.Played() {
		if p.Ended {
			t.Errorf("segment %d ended after being stopped", i)
		}
	}
}

func TestPlaybackScheduler_FlushIdle(t *testing.T) {
	s := NewPlaybackScheduler(NewVirtualOutput(SampleRate24kHz))
	if n := s.Flush(); n != 0 {
		t.Errorf("Flush() = %d on idle scheduler", n)
	}
	if s.IsSpeaking() {
		t.Error("IsSpeaking() = true on idle scheduler")
	}
}

func TestPlaybackScheduler_ScheduleAfterFlushUsesClock(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)

	_, _ = s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(time.Second, SampleRate24kHz)))
	out.Advance(400 * time.Millisecond)
	s.Flush()

	seg, _ := s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(100*time.Millisecond, SampleRate24kHz)))
	if seg.Start != 400*time.Millisecond {
		t.Errorf("Start = %v, want 400ms", seg.Start)
	}
}

func TestPlaybackScheduler_DeviceError(t *testing.T) {
	out := NewVirtualOutput(SampleRate24kHz)
	s := NewPlaybackScheduler(out)
	_ = out.Close()

	_, err := s.Schedule(NewMonoBuffer(SampleRate24kHz, samplesFor(100*time.Millisecond, SampleRate24kHz)))
	if !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("Schedule() error = %v, want ErrDeviceClosed", err)
	}
	if s.Cursor() != 0 || s.Active() != 0 {
		t.Error("failed Schedule changed scheduler state")
	}
}

func TestPlaybackScheduler_NoOverlapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test data

	for trial := 0; trial < 50; trial++ {
		out := NewVirtualOutput(SampleRate24kHz)
		s := NewPlaybackScheduler(out)

		var prev Segment
		for i := 0; i < 40; i++ {
			if rng.Intn(3) == 0 {
				out.Advance(time.Duration(rng.Intn(400)) * time.Millisecond)
			}
			frames := 1 + rng.Intn(12000)
			seg, err := s.Schedule(NewMonoBuffer(SampleRate24kHz, make([]float32, frames)))
			if err != nil {
				t.Fatalf("Schedule() error = %v", err)
			}
			if i > 0 {
				if seg.Start < prev.Start {
					t.Fatalf("trial %d: start %v before previous start %v", trial, seg.Start, prev.Start)
				}
				if seg.Start < prev.End() {
					t.Fatalf("trial %d: start %v overlaps previous end %v", trial, seg.Start, prev.End())
				}
			}
			if seg.Start < out.Now() {
				t.Fatalf("trial %d: segment scheduled in the past", trial)
			}
			prev = seg
		}
	}
}

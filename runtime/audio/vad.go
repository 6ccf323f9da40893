package audio

import (
	"math"
	"sync"
	"time"
)

// Default VAD parameter values.
const (
	DefaultVADConfidence = 0.5
	DefaultVADStartSecs  = 0.2
	DefaultVADStopSecs   = 0.8
	DefaultVADMinVolume  = 0.01

	// defaultSmoothingAlpha is the exponential smoothing factor (0.0-1.0).
	defaultSmoothingAlpha = 0.3
	// maxExpectedRMS is the expected maximum RMS for voice audio.
	maxExpectedRMS = 0.5
)

// VADState represents the current voice activity state.
type VADState int

const (
	// VADStateQuiet indicates no voice activity detected.
	VADStateQuiet VADState = iota
	// VADStateStarting indicates voice is starting (within start threshold).
	VADStateStarting
	// VADStateSpeaking indicates active speech.
	VADStateSpeaking
	// VADStateStopping indicates voice is stopping (within stop threshold).
	VADStateStopping
)

// String returns a human-readable representation of the VAD state.
func (s VADState) String() string {
	switch s {
	case VADStateQuiet:
		return "quiet"
	case VADStateStarting:
		return "starting"
	case VADStateSpeaking:
		return "speaking"
	case VADStateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// VADParams configures voice activity detection behavior.
type VADParams struct {
	// Confidence threshold for voice detection (0.0-1.0).
	Confidence float64
	// StartSecs of speech required to enter VADStateSpeaking.
	StartSecs float64
	// StopSecs of silence required to return to VADStateQuiet.
	StopSecs float64
	// MinVolume is the RMS below which audio counts as silence.
	MinVolume float64
}

// DefaultVADParams returns sensible defaults for voice activity detection.
func DefaultVADParams() VADParams {
	return VADParams{
		Confidence: DefaultVADConfidence,
		StartSecs:  DefaultVADStartSecs,
		StopSecs:   DefaultVADStopSecs,
		MinVolume:  DefaultVADMinVolume,
	}
}

// Validate checks that VAD parameters are within acceptable ranges.
func (p VADParams) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return &ValidationError{Field: "Confidence", Message: "must be between 0.0 and 1.0"}
	}
	if p.StartSecs < 0 {
		return &ValidationError{Field: "StartSecs", Message: "must be non-negative"}
	}
	if p.StopSecs < 0 {
		return &ValidationError{Field: "StopSecs", Message: "must be non-negative"}
	}
	if p.MinVolume < 0 || p.MinVolume >= maxExpectedRMS {
		return &ValidationError{Field: "MinVolume", Message: "must be between 0.0 and 0.5"}
	}
	return nil
}

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// VoiceMeter tracks the loudness of captured frames and runs an RMS based
// voice activity state machine over them. Time is measured in samples
// analyzed, so the meter needs no clock.
type VoiceMeter struct {
	params VADParams
	rate   int

	mu          sync.Mutex
	state       VADState
	inState     time.Duration
	smoothedRMS float64
}

// NewVoiceMeter creates a meter for mono audio at rate.
func NewVoiceMeter(params VADParams, rate int) (*VoiceMeter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, &ValidationError{Field: "rate", Message: "must be positive"}
	}
	return &VoiceMeter{params: params, rate: rate}, nil
}

// Analyze feeds one frame and returns the voice probability (0.0-1.0).
func (m *VoiceMeter) Analyze(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	rms := rootMeanSquare(frame)
	elapsed := time.Duration(len(frame)) * time.Second / time.Duration(m.rate)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.smoothedRMS = defaultSmoothingAlpha*rms + (1-defaultSmoothingAlpha)*m.smoothedRMS
	probability := m.probability(m.smoothedRMS)

	m.inState += elapsed
	if next := m.next(probability); next != m.state {
		m.state = next
		m.inState = 0
	}
	return probability
}

func rootMeanSquare(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func (m *VoiceMeter) probability(rms float64) float64 {
	if rms <= m.params.MinVolume {
		return 0
	}
	p := (rms - m.params.MinVolume) / (maxExpectedRMS - m.params.MinVolume)
	return math.Min(p, 1)
}

func (m *VoiceMeter) next(probability float64) VADState {
	above := probability >= m.params.Confidence
	held := m.inState.Seconds()

	switch m.state {
	case VADStateQuiet:
		if above {
			return VADStateStarting
		}
	case VADStateStarting:
		if !above {
			return VADStateQuiet
		}
		if held >= m.params.StartSecs {
			return VADStateSpeaking
		}
	case VADStateSpeaking:
		if !above {
			return VADStateStopping
		}
	case VADStateStopping:
		if above {
			return VADStateSpeaking
		}
		if held >= m.params.StopSecs {
			return VADStateQuiet
		}
	}
	return m.state
}

// Level returns the smoothed RMS of recent frames.
func (m *VoiceMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.smoothedRMS
}

// State returns the current VAD state.
func (m *VoiceMeter) State() VADState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Speaking reports whether the user is currently talking, including short
// pauses inside an utterance.
func (m *VoiceMeter) Speaking() bool {
	s := m.State()
	return s == VADStateSpeaking || s == VADStateStopping
}

// Reset clears accumulated state for a new session.
func (m *VoiceMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = VADStateQuiet
	m.inState = 0
	m.smoothedRMS = 0
}

package session

import (
	"errors"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/tools"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// DefaultTickInterval is how often the derived speaking flag and input
// level are re-evaluated.
const DefaultTickInterval = 100 * time.Millisecond

const postBuffer = 64

// Config wires a Controller to its collaborators.
type Config struct {
	// Backend opens the microphone and speaker. Required.
	Backend audio.Backend
	// Connector opens live sessions. Required.
	Connector live.Connector
	// Setup is copied for every session. Empty Tools are filled from the
	// dispatcher registry and an empty SystemInstruction from the locale's
	// default persona.
	Setup live.Setup

	// Dispatcher runs tool calls. Nil uses an empty registry, so every
	// call is acknowledged as failed.
	Dispatcher *tools.Dispatcher
	// Transcript receives rendered entries. Nil creates a new log.
	Transcript *transcript.Log
	// Bus receives session events. Optional.
	Bus *events.EventBus
	// Printer localizes errors and prompts. Nil uses the default locale.
	Printer *i18n.Printer

	CaptureRate       int
	PlaybackRate      int
	FrameSize         int
	SpeakingTolerance time.Duration
	VAD               *audio.VADParams

	// Ticks drives periodic re-evaluation. Nil starts a ticker at
	// TickInterval.
	Ticks        <-chan time.Time
	TickInterval time.Duration

	// OnToolCall is called on the loop for every inbound batch.
	OnToolCall func(batch []tools.Invocation)
}

func (c *Config) validate() error {
	if c.Backend == nil {
		return errors.New("session: audio backend is required")
	}
	if c.Connector == nil {
		return errors.New("session: connector is required")
	}
	return nil
}

func (c *Config) defaults() error {
	if c.Printer == nil {
		c.Printer = i18n.Default()
	}
	if c.Transcript == nil {
		c.Transcript = transcript.NewLog()
	}
	if c.Dispatcher == nil {
		d, err := tools.NewDispatcher(tools.DispatcherConfig{Registry: tools.NewRegistry(), Printer: c.Printer})
		if err != nil {
			return err
		}
		c.Dispatcher = d
	}
	if c.CaptureRate <= 0 {
		c.CaptureRate = audio.SampleRate16kHz
	}
	if c.PlaybackRate <= 0 {
		c.PlaybackRate = audio.SampleRate24kHz
	}
	if c.FrameSize <= 0 {
		c.FrameSize = audio.DefaultFrameSize
	}
	if c.SpeakingTolerance <= 0 {
		c.SpeakingTolerance = audio.DefaultSpeakingTolerance
	}
	if c.VAD == nil {
		params := audio.DefaultVADParams()
		c.VAD = &params
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return nil
}

// setup returns the per-session copy of the configured Setup.
func (c *Config) setup() *live.Setup {
	s := c.Setup
	if len(s.Tools) == 0 {
		s.Tools = c.Dispatcher.Registry().Declarations()
	} else {
		s.Tools = append([]live.FunctionDeclaration(nil), s.Tools...)
	}
	if s.SystemInstruction == "" {
		s.SystemInstruction = c.Printer.Text(i18n.DefaultPersonaPrompt)
	}
	return &s
}

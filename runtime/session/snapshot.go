package session

import (
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// State is the controller lifecycle state.
type State string

// States. ERROR is left only by an explicit Start or Retry.
const (
	StateIdle       State = "IDLE"
	StateConnecting State = "CONNECTING"
	StateConnected  State = "CONNECTED"
	StateError      State = "ERROR"
)

var stateLabels = map[State]string{
	StateIdle:       i18n.StateIdle,
	StateConnecting: i18n.StateConnecting,
	StateConnected:  i18n.StateConnected,
	StateError:      i18n.StateError,
}

// Label returns the localized state name.
func (s State) Label(p *i18n.Printer) string {
	if p == nil {
		p = i18n.Default()
	}
	if key, ok := stateLabels[s]; ok {
		return p.Text(key)
	}
	return string(s)
}

// Mode is what the front-end should be showing.
type Mode string

// Modes. CONTENT is entered on the first tool call of a session.
const (
	ModeVoice    Mode = "VOICE"
	ModeContent  Mode = "CONTENT"
	ModeSleeping Mode = "SLEEPING"
)

// Avatar is the face the front-end draws.
type Avatar string

// Avatar expressions.
const (
	AvatarSleeping  Avatar = "sleeping"
	AvatarListening Avatar = "listening"
	AvatarThinking  Avatar = "thinking"
	AvatarSpeaking  Avatar = "speaking"
)

// Snapshot is the read-only projection rendered by front-ends.
type Snapshot struct {
	State   State
	History []transcript.Entry // newest first
	Error   *AppError

	Thinking bool
	Speaking bool
	Mode     Mode
	Avatar   Avatar

	// InputLevel is the smoothed microphone RMS; UserSpeaking is the
	// voice-activity verdict for the same frames.
	InputLevel   float64
	UserSpeaking bool

	Epoch uint64
}

func avatarFor(state State, thinking, speaking bool) Avatar {
	switch {
	case state != StateConnected:
		return AvatarSleeping
	case speaking:
		return AvatarSpeaking
	case thinking:
		return AvatarThinking
	default:
		return AvatarListening
	}
}

// levelSteps quantizes the input level so that meter noise alone does not
// republish the projection.
const levelSteps = 50

// snapshotKey holds the comparable parts of a Snapshot.
type snapshotKey struct {
	state        State
	entries      int
	err          *AppError
	thinking     bool
	speaking     bool
	mode         Mode
	level        int
	userSpeaking bool
	epoch        uint64
}

func keyOf(s *Snapshot) snapshotKey {
	return snapshotKey{
		state:        s.State,
		entries:      len(s.History),
		err:          s.Error,
		thinking:     s.Thinking,
		speaking:     s.Speaking,
		mode:         s.Mode,
		level:        int(s.InputLevel * levelSteps),
		userSpeaking: s.UserSpeaking,
		epoch:        s.Epoch,
	}
}

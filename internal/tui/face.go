package tui

import "github.com/AltairaLabs/roboshen/runtime/session"

// faces maps each avatar pose to a small ASCII face.
var faces = map[session.Avatar]string{
	session.AvatarSleeping:  "( -_- ) zZ",
	session.AvatarListening: "( o_o )",
	session.AvatarThinking:  "( o_O ) ...",
	session.AvatarSpeaking:  "( ^o^ )",
}

func face(a session.Avatar) string {
	if f, ok := faces[a]; ok {
		return f
	}
	return faces[session.AvatarSleeping]
}

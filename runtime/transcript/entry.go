// Package transcript holds the rendered conversation: an append-only log
// of entries shown newest first, and archives that persist it per session.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of an entry.
type Role string

// Roles.
const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Kind is the content kind of an entry.
type Kind string

// Content kinds.
const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindImage Kind = "image"
)

// Entry is one rendered turn. Entries are never mutated once appended.
type Entry struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	Role    Role      `json:"role"`
	Kind    Kind      `json:"kind"`
	Payload string    `json:"payload"`
	Time    time.Time `json:"time"`
}

// newEntry stamps a fresh identifier.
func newEntry(seq uint64, role Role, kind Kind, payload string) Entry {
	return Entry{
		ID:      uuid.NewString(),
		Seq:     seq,
		Role:    role,
		Kind:    kind,
		Payload: payload,
		Time:    time.Now(),
	}
}

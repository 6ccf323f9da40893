package transcript

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a session has no archived transcript.
	ErrNotFound = errors.New("transcript not found")

	// ErrInvalidID is returned for an empty session ID.
	ErrInvalidID = errors.New("invalid session ID")
)

// SessionInfo summarises an archived session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Entries   int       `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Archive persists transcripts per session.
type Archive interface {
	// Append stores entries after any already archived for the session.
	Append(ctx context.Context, sessionID string, entries ...Entry) error

	// Load returns the session's entries in insertion order.
	Load(ctx context.Context, sessionID string) ([]Entry, error)

	// List returns sessions, most recently updated first, up to limit
	// (0 means no limit).
	List(ctx context.Context, limit int) ([]SessionInfo, error)

	// Delete removes a session's transcript.
	Delete(ctx context.Context, sessionID string) error
}

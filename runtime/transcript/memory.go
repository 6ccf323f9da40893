package transcript

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryArchive is an in-process Archive.
type MemoryArchive struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	entries   []Entry
	updatedAt time.Time
}

// NewMemoryArchive returns an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{sessions: make(map[string]*memorySession)}
}

// Append implements Archive.
func (a *MemoryArchive) Append(_ context.Context, sessionID string, entries ...Entry) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		s = &memorySession{}
		a.sessions[sessionID] = s
	}
	s.entries = append(s.entries, entries...)
	s.updatedAt = time.Now()
	return nil
}

// Load implements Archive.
func (a *MemoryArchive) Load(_ context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Entry(nil), s.entries...), nil
}

// List implements Archive.
func (a *MemoryArchive) List(_ context.Context, limit int) ([]SessionInfo, error) {
	a.mu.RLock()
	out := make([]SessionInfo, 0, len(a.sessions))
	for id, s := range a.sessions {
		out = append(out, SessionInfo{ID: id, Entries: len(s.entries), UpdatedAt: s.updatedAt})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements Archive.
func (a *MemoryArchive) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(a.sessions, sessionID)
	return nil
}

var _ Archive = (*MemoryArchive)(nil)

package transcript

import "sync"

// Log is an append-only, concurrency-safe entry sequence.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    uint64
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records a new entry and returns it. Seq increases by one per entry.
func (l *Log) Append(role Role, kind Kind, payload string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	e := newEntry(l.next, role, kind, payload)
	l.entries = append(l.entries, e)
	return e
}

// NewestFirst returns a copy of the entries, most recent first.
func (l *Log) NewestFirst() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Entries returns a copy in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

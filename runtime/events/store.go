package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// File system constants.
const (
	dirPermissions  = 0o750
	filePermissions = 0o600
	scannerBufSize  = 1024 * 1024 // 1MB buffer for large events
)

// ErrNoSessionID is returned when appending an event without a session.
var ErrNoSessionID = errors.New("event has no session ID")

// EventStore persists events for later inspection.
type EventStore interface {
	Append(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter *EventFilter) ([]*StoredEvent, error)
	Close() error
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	SessionID string
	Types     []EventType
	Since     time.Time
	Limit     int
}

// StoredEvent is one recorded line.
type StoredEvent struct {
	Sequence  int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Epoch     uint64          `json:"epoch,omitempty"`
	DataType  string          `json:"data_type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func toStored(seq int64, e *Event) (*StoredEvent, error) {
	se := &StoredEvent{
		Sequence:  seq,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		SessionID: e.SessionID,
		Epoch:     e.Epoch,
	}
	if e.Data != nil {
		se.DataType = strings.TrimPrefix(fmt.Sprintf("%T", e.Data), "*")
		data, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		se.Data = data
	}
	return se, nil
}

// FileEventStore implements EventStore using JSON Lines files, one per
// session.
type FileEventStore struct {
	dir      string
	mu       sync.Mutex
	files    map[string]*os.File
	sequence atomic.Int64
}

// NewFileEventStore creates a file-based event store in dir.
func NewFileEventStore(dir string) (*FileEventStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create event store directory: %w", err)
	}
	return &FileEventStore{
		dir:   dir,
		files: make(map[string]*os.File),
	}, nil
}

// Append adds an event to the store.
func (s *FileEventStore) Append(_ context.Context, event *Event) error {
	if event.SessionID == "" {
		return ErrNoSessionID
	}

	stored, err := toStored(s.sequence.Add(1), event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.getOrCreateFile(event.SessionID)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Query returns recorded events matching the filter.
func (s *FileEventStore) Query(ctx context.Context, filter *EventFilter) ([]*StoredEvent, error) {
	if filter.SessionID == "" {
		return nil, fmt.Errorf("session ID required for query")
	}

	f, err := os.Open(s.sessionPath(filter.SessionID)) //nolint:gosec // path is constructed from trusted sessionID
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var out []*StoredEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var stored StoredEvent
		if err := json.Unmarshal(scanner.Bytes(), &stored); err != nil {
			continue // Skip malformed lines
		}
		if !matches(&stored, filter) {
			continue
		}
		out = append(out, &stored)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, scanner.Err()
}

// Sessions lists the sessions with recordings.
func (s *FileEventStore) Sessions() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = strings.TrimSuffix(filepath.Base(m), ".jsonl")
	}
	return ids, nil
}

// Close syncs and closes all files.
func (s *FileEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.files {
		if err := f.Sync(); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = make(map[string]*os.File)
	return errors.Join(errs...)
}

func (s *FileEventStore) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, filepath.Base(sessionID)+".jsonl")
}

// getOrCreateFile returns the file for a session. Caller must hold s.mu.
func (s *FileEventStore) getOrCreateFile(sessionID string) (*os.File, error) {
	if f, ok := s.files[sessionID]; ok {
		return f, nil
	}

	//nolint:gosec // path is constructed from trusted sessionID
	f, err := os.OpenFile(s.sessionPath(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}
	s.files[sessionID] = f
	return f, nil
}

func matches(e *StoredEvent, filter *EventFilter) bool {
	if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
		return false
	}
	if len(filter.Types) == 0 {
		return true
	}
	for _, t := range filter.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Recorder returns a listener that appends every event to store. Write
// failures are logged and otherwise ignored.
func Recorder(store EventStore) Listener {
	return func(e *Event) {
		if err := store.Append(context.Background(), e); err != nil {
			logger.Warn("event recording failed", "type", e.Type, "error", err)
		}
	}
}

// Ensure FileEventStore implements EventStore.
var _ EventStore = (*FileEventStore)(nil)

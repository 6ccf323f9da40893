package transcript

import (
	"context"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

const archiveTimeout = 5 * time.Second

// Archiver returns a bus listener that copies transcript.appended events
// into archive. Failures are logged; the live transcript is unaffected.
func Archiver(archive Archive) events.Listener {
	return func(e *events.Event) {
		data, ok := e.Data.(*events.TranscriptEventData)
		if !ok || e.SessionID == "" {
			return
		}
		entry := Entry{
			ID:      data.EntryID,
			Seq:     data.Seq,
			Role:    Role(data.Role),
			Kind:    Kind(data.Kind),
			Payload: data.Payload,
			Time:    e.Timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := archive.Append(ctx, e.SessionID, entry); err != nil {
			logger.Warn("transcript archive append failed", "session_id", e.SessionID, "error", err)
		}
	}
}

// EventData converts an entry to its bus payload.
func EventData(e Entry) *events.TranscriptEventData {
	return &events.TranscriptEventData{
		EntryID: e.ID,
		Role:    string(e.Role),
		Kind:    string(e.Kind),
		Seq:     e.Seq,
		Payload: e.Payload,
	}
}

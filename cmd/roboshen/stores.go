package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AltairaLabs/roboshen/pkg/config"
	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

const redisPingTimeout = 3 * time.Second

// openArchive returns the transcript archive selected by spec and a func
// releasing its connection.
func openArchive(ctx context.Context, spec *config.TranscriptSpec) (transcript.Archive, func() error, error) {
	if spec.Store != config.StoreRedis {
		return transcript.NewMemoryArchive(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     spec.Address,
		Password: spec.Password,
		DB:       spec.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to transcript store %s: %w", spec.Address, err)
	}

	archive := transcript.NewRedisArchive(client,
		transcript.WithTTL(spec.TTL),
		transcript.WithPrefix(spec.Prefix),
	)
	return archive, client.Close, nil
}

// replayRecordings rebuilds transcripts from recorded transcript.appended
// events. Only the given session is replayed unless sessionID is empty.
func replayRecordings(ctx context.Context, store *events.FileEventStore, sessionID string) (*transcript.MemoryArchive, error) {
	ids := []string{sessionID}
	if sessionID == "" {
		var err error
		if ids, err = store.Sessions(); err != nil {
			return nil, err
		}
	}

	archive := transcript.NewMemoryArchive()
	archiver := transcript.Archiver(archive)
	for _, id := range ids {
		stored, err := store.Query(ctx, &events.EventFilter{
			SessionID: id,
			Types:     []events.EventType{events.EventTranscriptAppended},
		})
		if err != nil {
			return nil, fmt.Errorf("read recording %s: %w", id, err)
		}
		for _, se := range stored {
			var data events.TranscriptEventData
			if err := json.Unmarshal(se.Data, &data); err != nil {
				return nil, fmt.Errorf("decode recording %s seq %d: %w", id, se.Sequence, err)
			}
			archiver(&events.Event{
				Type:      se.Type,
				Timestamp: se.Timestamp,
				SessionID: se.SessionID,
				Epoch:     se.Epoch,
				Data:      &data,
			})
		}
	}
	return archive, nil
}

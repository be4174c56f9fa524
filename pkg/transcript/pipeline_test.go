package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recallerrors "github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
)

// memStore is an in-memory ArtifactStore.
type memStore struct {
	artifacts map[uuid.UUID]*MeetingArtifact
	chunks    map[uuid.UUID][]Segment
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		artifacts: make(map[uuid.UUID]*MeetingArtifact),
		chunks:    make(map[uuid.UUID][]Segment),
	}
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*MeetingArtifact, error) {
	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, recallerrors.ErrNotFound
	}
	return artifact, nil
}

func (s *memStore) FindByRemoteEventID(ctx context.Context, remoteEventID string) (*MeetingArtifact, error) {
	for _, a := range s.artifacts {
		if a.RemoteEventID == remoteEventID {
			return a, nil
		}
	}
	return nil, recallerrors.ErrNotFound
}

func (s *memStore) FindByBotID(ctx context.Context, botID string) (*MeetingArtifact, error) {
	for _, a := range s.artifacts {
		if a.RemoteBotID == botID {
			return a, nil
		}
	}
	return nil, recallerrors.ErrNotFound
}

func (s *memStore) Create(ctx context.Context, artifact *MeetingArtifact) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.artifacts[artifact.ID] = artifact
	return nil
}

func (s *memStore) SetCorrelation(ctx context.Context, id uuid.UUID, remoteEventID, botID string) error {
	a := s.artifacts[id]
	if a.RemoteEventID == "" {
		a.RemoteEventID = remoteEventID
	}
	if a.RemoteBotID == "" {
		a.RemoteBotID = botID
	}
	return nil
}

func (s *memStore) SetPayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error {
	s.artifacts[id].Payload = payload
	return nil
}

func (s *memStore) SetStatus(ctx context.Context, id uuid.UUID, status ArtifactStatus) error {
	s.artifacts[id].Status = status
	return nil
}

func (s *memStore) ReplaceChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error {
	s.chunks[artifactID] = append([]Segment(nil), segments...)
	return nil
}

func (s *memStore) AppendChunks(ctx context.Context, artifactID uuid.UUID, segments []Segment) error {
	s.chunks[artifactID] = append(s.chunks[artifactID], segments...)
	return nil
}

func (s *memStore) CountChunks(ctx context.Context, artifactID uuid.UUID) (int, error) {
	return len(s.chunks[artifactID]), nil
}

func (s *memStore) single(t *testing.T) *MeetingArtifact {
	t.Helper()
	require.Len(t, s.artifacts, 1)
	for _, a := range s.artifacts {
		return a
	}
	return nil
}

// fakeFetcher serves canned bot state and transcripts.
type fakeFetcher struct {
	bot            map[string]interface{}
	botErr         error
	transcript     []map[string]interface{}
	transcriptErr  error
	transcriptGets int
}

func (f *fakeFetcher) GetBot(ctx context.Context, botID string) (map[string]interface{}, error) {
	return f.bot, f.botErr
}

func (f *fakeFetcher) GetBotTranscript(ctx context.Context, botID string) ([]map[string]interface{}, error) {
	f.transcriptGets++
	return f.transcript, f.transcriptErr
}

// fakeEnrich records enrichment handoffs.
type fakeEnrich struct {
	ids []uuid.UUID
	err error
}

func (f *fakeEnrich) EnqueueEnrich(ctx context.Context, artifactID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, artifactID)
	return nil
}

func newTestPipeline(store ArtifactStore, fetcher BotFetcher, enrich EnrichEnqueuer) *Pipeline {
	return NewPipeline(PipelineOptions{
		Store:    store,
		Provider: fetcher,
		Enricher: enrich,
		Metrics:  observability.New(prometheus.NewRegistry()),
	})
}

func streamingPayload(botID, text string) map[string]interface{} {
	return map[string]interface{}{
		"event": "transcript.partial_data",
		"data": map[string]interface{}{
			"bot": map[string]interface{}{"id": botID},
			"data": map[string]interface{}{
				"words": []interface{}{
					map[string]interface{}{"text": text, "start_timestamp": 1.0, "end_timestamp": 2.0},
				},
			},
		},
	}
}

func terminalTranscriptPayload(botID string, texts ...string) map[string]interface{} {
	var items []interface{}
	for i, text := range texts {
		items = append(items, map[string]interface{}{
			"participant": map[string]interface{}{"name": "Speaker"},
			"words": []interface{}{
				map[string]interface{}{"text": text, "start_timestamp": float64(i), "end_timestamp": float64(i) + 0.5},
			},
		})
	}
	return map[string]interface{}{
		"event": "transcript.data",
		"data": map[string]interface{}{
			"bot":        map[string]interface{}{"id": botID},
			"transcript": items,
		},
	}
}

func doneStatusPayload(botID, remoteEventID string) map[string]interface{} {
	data := map[string]interface{}{
		"bot_id": botID,
		"status": map[string]interface{}{"code": "done"},
	}
	if remoteEventID != "" {
		data["calendar_event_id"] = remoteEventID
	}
	return map[string]interface{}{"event": "bot.status_change", "data": data}
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("streaming chunks append across deliveries", func(t *testing.T) {
		store := newMemStore()
		p := newTestPipeline(store, &fakeFetcher{}, nil)

		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "first")))
		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "second")))

		artifact := store.single(t)
		assert.Equal(t, StatusReceived, artifact.Status)
		require.Len(t, store.chunks[artifact.ID], 2)
		assert.Equal(t, "first", store.chunks[artifact.ID][0].Text)
		assert.Equal(t, "second", store.chunks[artifact.ID][1].Text)
	})

	t.Run("terminal transcript replaces streamed chunks", func(t *testing.T) {
		store := newMemStore()
		enrich := &fakeEnrich{}
		p := newTestPipeline(store, &fakeFetcher{}, enrich)

		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "partial")))
		require.NoError(t, p.Ingest(ctx, "transcript.data", terminalTranscriptPayload("b1", "full", "transcript")))

		artifact := store.single(t)
		assert.Equal(t, StatusCompleted, artifact.Status)
		require.Len(t, store.chunks[artifact.ID], 2)
		assert.Equal(t, "full", store.chunks[artifact.ID][0].Text)
		assert.Equal(t, []uuid.UUID{artifact.ID}, enrich.ids)
	})

	t.Run("event id and bot id deliveries reconcile to one artifact", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{bot: map[string]interface{}{"video_url": "https://cdn.example.com/v.mp4"}}
		p := newTestPipeline(store, fetcher, &fakeEnrich{})

		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "hello")))
		require.NoError(t, p.Ingest(ctx, "bot.status_change", doneStatusPayload("b1", "remote-ev-9")))

		artifact := store.single(t)
		assert.Equal(t, "b1", artifact.RemoteBotID)
		assert.Equal(t, "remote-ev-9", artifact.RemoteEventID)
	})

	t.Run("final status change pulls the full bot record", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{
			bot:        map[string]interface{}{"video_url": "https://cdn.example.com/v.mp4"},
			transcript: []map[string]interface{}{},
		}
		p := newTestPipeline(store, fetcher, &fakeEnrich{})

		require.NoError(t, p.Ingest(ctx, "bot.status_change", doneStatusPayload("b1", "")))

		artifact := store.single(t)
		assert.Equal(t, "https://cdn.example.com/v.mp4", artifact.Payload["video_url"])
		assert.Equal(t, StatusCompleted, artifact.Status)
	})

	t.Run("non-terminal status change is not terminal", func(t *testing.T) {
		store := newMemStore()
		enrich := &fakeEnrich{}
		p := newTestPipeline(store, &fakeFetcher{}, enrich)

		payload := map[string]interface{}{
			"event": "bot.status_change",
			"data": map[string]interface{}{
				"bot_id": "b1",
				"status": map[string]interface{}{"code": "in_call_recording"},
			},
		}
		require.NoError(t, p.Ingest(ctx, "bot.status_change", payload))

		artifact := store.single(t)
		assert.Equal(t, StatusReceived, artifact.Status)
		assert.Empty(t, enrich.ids)
	})

	t.Run("terminal with no chunks falls back to a transcript fetch", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{
			transcript: []map[string]interface{}{
				{
					"participant": map[string]interface{}{"name": "Alice"},
					"words": []interface{}{
						map[string]interface{}{"text": "recovered", "start_timestamp": 1.0, "end_timestamp": 2.0},
					},
				},
			},
		}
		p := newTestPipeline(store, fetcher, &fakeEnrich{})

		require.NoError(t, p.Ingest(ctx, "bot.status_change", doneStatusPayload("b1", "")))

		artifact := store.single(t)
		assert.Equal(t, 1, fetcher.transcriptGets)
		require.Len(t, store.chunks[artifact.ID], 1)
		assert.Equal(t, "recovered", store.chunks[artifact.ID][0].Text)
	})

	t.Run("fallback is skipped when chunks already exist", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{}
		p := newTestPipeline(store, fetcher, &fakeEnrich{})

		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "streamed")))
		require.NoError(t, p.Ingest(ctx, "bot.status_change", doneStatusPayload("b1", "")))

		assert.Zero(t, fetcher.transcriptGets)
	})

	t.Run("fallback fetch failure does not block completion", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{transcriptErr: errors.New("gateway timeout")}
		enrich := &fakeEnrich{}
		p := newTestPipeline(store, fetcher, enrich)

		require.NoError(t, p.Ingest(ctx, "bot.status_change", doneStatusPayload("b1", "")))

		artifact := store.single(t)
		assert.Equal(t, StatusCompleted, artifact.Status)
		assert.Len(t, enrich.ids, 1)
	})

	t.Run("transcription failure closes the artifact without enrichment", func(t *testing.T) {
		store := newMemStore()
		fetcher := &fakeFetcher{}
		enrich := &fakeEnrich{}
		p := newTestPipeline(store, fetcher, enrich)

		payload := map[string]interface{}{
			"event": "transcript.failed",
			"data": map[string]interface{}{
				"bot":   map[string]interface{}{"id": "b1"},
				"error": "asr_unavailable",
			},
		}
		require.NoError(t, p.Ingest(ctx, "transcript.failed", payload))

		artifact := store.single(t)
		assert.Equal(t, StatusCompleted, artifact.Status)
		assert.Empty(t, enrich.ids)
		assert.Zero(t, fetcher.transcriptGets)
	})

	t.Run("payload without correlation ids is dropped, not retried", func(t *testing.T) {
		store := newMemStore()
		p := newTestPipeline(store, &fakeFetcher{}, nil)

		err := p.Ingest(ctx, "transcript.data", map[string]interface{}{"data": map[string]interface{}{}})
		require.NoError(t, err)
		assert.Empty(t, store.artifacts)
	})

	t.Run("payloads accumulate via deep merge", func(t *testing.T) {
		store := newMemStore()
		p := newTestPipeline(store, &fakeFetcher{}, nil)

		first := streamingPayload("b1", "one")
		first["extra"] = "keep-me"
		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", first))
		require.NoError(t, p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "two")))

		artifact := store.single(t)
		assert.Equal(t, "keep-me", artifact.Payload["extra"])
	})

	t.Run("store failure is returned for retry", func(t *testing.T) {
		store := newMemStore()
		store.createErr = errors.New("connection reset")
		p := newTestPipeline(store, &fakeFetcher{}, nil)

		err := p.Ingest(ctx, "transcript.partial_data", streamingPayload("b1", "x"))
		assert.Error(t, err)
	})

	t.Run("enqueue failure is returned for retry", func(t *testing.T) {
		store := newMemStore()
		enrich := &fakeEnrich{err: errors.New("redis down")}
		p := newTestPipeline(store, &fakeFetcher{}, enrich)

		err := p.Ingest(ctx, "transcript.data", terminalTranscriptPayload("b1", "text"))
		assert.Error(t, err)
	})
}

func TestCorrelationIDs(t *testing.T) {
	t.Run("top-level id is never the bot id", func(t *testing.T) {
		payload := map[string]interface{}{
			"id": "delivery-123",
			"data": map[string]interface{}{
				"bot": map[string]interface{}{"id": "b1"},
			},
		}
		botID, eventID := correlationIDs("transcript.data", payload)
		assert.Equal(t, "b1", botID)
		assert.Empty(t, eventID)
	})

	t.Run("status events carry bot_id directly", func(t *testing.T) {
		botID, _ := correlationIDs("bot.status_change", map[string]interface{}{
			"data": map[string]interface{}{"bot_id": "b2"},
		})
		assert.Equal(t, "b2", botID)
	})

	t.Run("nested status payload shape", func(t *testing.T) {
		botID, _ := correlationIDs("bot.status_change", map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{"bot_id": "b3"},
			},
		})
		assert.Equal(t, "b3", botID)
	})

	t.Run("calendar event id from object form", func(t *testing.T) {
		_, eventID := correlationIDs("transcript.data", map[string]interface{}{
			"data": map[string]interface{}{
				"bot":            map[string]interface{}{"id": "b1"},
				"calendar_event": map[string]interface{}{"id": "remote-ev-1"},
			},
		})
		assert.Equal(t, "remote-ev-1", eventID)
	})
}

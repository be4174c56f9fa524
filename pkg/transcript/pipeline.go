package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tindevelopers/recall-sub000/pkg/errors"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
)

// BotFetcher fetches bot state and transcripts from the recording provider.
type BotFetcher interface {
	GetBot(ctx context.Context, botID string) (map[string]interface{}, error)
	GetBotTranscript(ctx context.Context, botID string) ([]map[string]interface{}, error)
}

// EnrichEnqueuer hands a completed artifact off for downstream enrichment.
type EnrichEnqueuer interface {
	EnqueueEnrich(ctx context.Context, artifactID uuid.UUID) error
}

// Pipeline ingests bot webhook payloads into meeting artifacts.
type Pipeline struct {
	store    ArtifactStore
	provider BotFetcher
	enricher EnrichEnqueuer
	metrics  *observability.Metrics
	logger   logging.Logger
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Store    ArtifactStore
	Provider BotFetcher
	Enricher EnrichEnqueuer
	Metrics  *observability.Metrics
	Logger   logging.Logger
}

// NewPipeline creates a transcript ingestion pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Pipeline{
		store:    opts.Store,
		provider: opts.Provider,
		enricher: opts.Enricher,
		metrics:  metrics,
		logger:   logger,
	}
}

// Terminal event types mark the recording as finished. Anything else is a
// streaming update.
func isTerminalEvent(eventType string, payload map[string]interface{}) bool {
	switch eventType {
	case "transcript.data", "transcript.done", "recording.done", "transcript.failed":
		return true
	case "bot.status_change":
		return botStatusCode(payload) == "done"
	}
	return false
}

func isFailureEvent(eventType string) bool {
	return eventType == "transcript.failed"
}

// Ingest processes one bot webhook delivery. Malformed payloads are logged
// and dropped; infrastructure failures are returned so the message can be
// retried.
func (p *Pipeline) Ingest(ctx context.Context, eventType string, payload map[string]interface{}) error {
	botID, remoteEventID := correlationIDs(eventType, payload)
	if botID == "" && remoteEventID == "" {
		p.logger.Warn("dropping bot event without correlation ids",
			logging.F("event_type", eventType))
		p.metrics.IngestFailures.Inc()
		return nil
	}

	log := p.logger.With(
		logging.F("event_type", eventType),
		logging.F("bot_id", botID),
		logging.F("remote_event_id", remoteEventID),
	)

	artifact, err := p.locateOrCreate(ctx, remoteEventID, botID)
	if err != nil {
		return err
	}
	log = log.With(logging.F("artifact_id", artifact.ID.String()))

	terminal := isTerminalEvent(eventType, payload)

	merged := DeepMerge(artifact.Payload, payload)
	if terminal && botID != "" && eventType == "bot.status_change" {
		// The final status change carries only a thin status envelope; pull
		// the full bot record so the artifact holds recording metadata.
		bot, err := p.provider.GetBot(ctx, botID)
		if err != nil {
			log.Warn("fetching final bot state failed", logging.Err(err))
		} else if bot != nil {
			merged = DeepMerge(merged, bot)
		}
	}
	if err := p.store.SetPayload(ctx, artifact.ID, merged); err != nil {
		return err
	}
	artifact.Payload = merged

	if isFailureEvent(eventType) {
		log.Warn("transcription reported failure; artifact closed without enrichment")
		if err := p.store.SetStatus(ctx, artifact.ID, StatusCompleted); err != nil {
			return err
		}
		return nil
	}

	segments := ExtractSegments(payload)
	if len(segments) > 0 {
		if terminal {
			if err := p.store.ReplaceChunks(ctx, artifact.ID, segments); err != nil {
				return err
			}
			p.metrics.ChunksWritten.WithLabelValues("final").Add(float64(len(segments)))
		} else {
			if err := p.store.AppendChunks(ctx, artifact.ID, segments); err != nil {
				return err
			}
			p.metrics.ChunksWritten.WithLabelValues("streaming").Add(float64(len(segments)))
		}
		log.Debug("wrote transcript chunks",
			logging.F("count", len(segments)),
			logging.F("terminal", terminal))
	}

	if !terminal {
		return nil
	}

	// A terminal event with nothing stored means the streaming updates never
	// arrived. Fetch the full transcript from the provider instead.
	count, err := p.store.CountChunks(ctx, artifact.ID)
	if err != nil {
		return err
	}
	if count == 0 && botID != "" {
		raw, err := p.provider.GetBotTranscript(ctx, botID)
		if err != nil {
			log.Warn("fallback transcript fetch failed", logging.Err(err))
		} else if fetched := ParseProviderTranscript(raw); len(fetched) > 0 {
			if err := p.store.ReplaceChunks(ctx, artifact.ID, fetched); err != nil {
				return err
			}
			p.metrics.FallbackFetches.Inc()
			p.metrics.ChunksWritten.WithLabelValues("fallback").Add(float64(len(fetched)))
			log.Info("recovered transcript via fallback fetch",
				logging.F("count", len(fetched)))
		}
	}

	if err := p.store.SetStatus(ctx, artifact.ID, StatusCompleted); err != nil {
		return err
	}

	if p.enricher != nil {
		if err := p.enricher.EnqueueEnrich(ctx, artifact.ID); err != nil {
			return fmt.Errorf("enqueueing enrichment: %w", err)
		}
		p.metrics.EnrichTriggers.Inc()
	}
	log.Info("artifact completed")
	return nil
}

// locateOrCreate finds an existing artifact by event id first, then bot id,
// filling in whichever correlation id the match was missing. A fresh
// artifact is created when neither lookup hits.
func (p *Pipeline) locateOrCreate(ctx context.Context, remoteEventID, botID string) (*MeetingArtifact, error) {
	if remoteEventID != "" {
		artifact, err := p.store.FindByRemoteEventID(ctx, remoteEventID)
		if err == nil {
			return p.fillCorrelation(ctx, artifact, remoteEventID, botID)
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	if botID != "" {
		artifact, err := p.store.FindByBotID(ctx, botID)
		if err == nil {
			return p.fillCorrelation(ctx, artifact, remoteEventID, botID)
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	artifact := &MeetingArtifact{
		ID:            uuid.New(),
		RemoteEventID: remoteEventID,
		RemoteBotID:   botID,
		Status:        StatusReceived,
		Payload:       map[string]interface{}{},
	}
	if err := p.store.Create(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

func (p *Pipeline) fillCorrelation(ctx context.Context, artifact *MeetingArtifact, remoteEventID, botID string) (*MeetingArtifact, error) {
	needEvent := artifact.RemoteEventID == "" && remoteEventID != ""
	needBot := artifact.RemoteBotID == "" && botID != ""
	if !needEvent && !needBot {
		return artifact, nil
	}
	if err := p.store.SetCorrelation(ctx, artifact.ID, remoteEventID, botID); err != nil {
		return nil, err
	}
	if needEvent {
		artifact.RemoteEventID = remoteEventID
	}
	if needBot {
		artifact.RemoteBotID = botID
	}
	return artifact, nil
}

// correlationIDs extracts the bot and calendar event ids from a webhook
// payload. Status changes carry the bot id at data.bot_id while transcript
// events nest it under data.bot.id. A top-level generic "id" is never used;
// it identifies the delivery, not the bot.
func correlationIDs(eventType string, payload map[string]interface{}) (botID, remoteEventID string) {
	data, _ := payload["data"].(map[string]interface{})
	if data == nil {
		return "", ""
	}

	if strings.HasPrefix(eventType, "bot.") {
		botID = stringAt(data, "bot_id")
	}
	if botID == "" {
		if bot, ok := data["bot"].(map[string]interface{}); ok {
			botID = stringAt(bot, "id")
		}
	}
	if botID == "" && strings.HasPrefix(eventType, "bot.") {
		// Some status payloads nest the id one level deeper.
		if inner, ok := data["data"].(map[string]interface{}); ok {
			botID = stringAt(inner, "bot_id")
		}
	}

	remoteEventID = stringAt(data, "calendar_event_id")
	if remoteEventID == "" {
		if ev, ok := data["calendar_event"].(map[string]interface{}); ok {
			remoteEventID = stringAt(ev, "id")
		}
	}
	return botID, remoteEventID
}

func botStatusCode(payload map[string]interface{}) string {
	data, _ := payload["data"].(map[string]interface{})
	if data == nil {
		return ""
	}
	if status, ok := data["status"].(map[string]interface{}); ok {
		return stringAt(status, "code")
	}
	if inner, ok := data["data"].(map[string]interface{}); ok {
		if status, ok := inner["status"].(map[string]interface{}); ok {
			return stringAt(status, "code")
		}
		return stringAt(inner, "code")
	}
	return stringAt(data, "code")
}

func stringAt(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

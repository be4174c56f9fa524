package recallai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Transcription provider selection.
const (
	// TranscriptProviderLowLatency streams partial transcripts during the
	// meeting. Only reliable for English or language auto-detection.
	TranscriptProviderLowLatency = "low_latency"

	// TranscriptProviderAccuracy produces a single high-quality transcript
	// after the meeting ends.
	TranscriptProviderAccuracy = "accuracy_optimized"
)

// Transcription selects the provider-side transcription engine.
type Transcription struct {
	Provider string `json:"provider"`
	Language string `json:"language,omitempty"`
}

// RealtimeEndpoint subscribes a webhook URL to realtime event delivery.
type RealtimeEndpoint struct {
	Type   string   `json:"type"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// BotConfig is the provider-specific configuration for a scheduled bot.
type BotConfig struct {
	BotName           string             `json:"bot_name,omitempty"`
	BotAvatarURL      string             `json:"bot_avatar_url,omitempty"`
	JoinAt            time.Time          `json:"join_at"`
	RecordVideo       bool               `json:"record_video"`
	RecordAudio       bool               `json:"record_audio"`
	Transcription     *Transcription     `json:"transcription_options,omitempty"`
	RealtimeEndpoints []RealtimeEndpoint `json:"realtime_endpoints,omitempty"`
}

// scheduleBotRequest is the add-bot request body.
type scheduleBotRequest struct {
	DeduplicationKey string    `json:"deduplication_key"`
	BotConfig        BotConfig `json:"bot_config"`
}

// ScheduleBot issues an idempotent "ensure bot present" call for the event.
// Repeated calls with the same deduplication key update the scheduled bot
// instead of creating a second one. The returned payload is the provider's
// view of the event including bot identifiers.
func (c *Client) ScheduleBot(ctx context.Context, remoteEventID, dedupKey string, cfg BotConfig) (json.RawMessage, error) {
	var state json.RawMessage
	req := scheduleBotRequest{DeduplicationKey: dedupKey, BotConfig: cfg}
	if err := c.do(ctx, "POST", c.endpoint("calendar-events", remoteEventID, "bot"), req, &state); err != nil {
		return nil, fmt.Errorf("scheduling bot for event %s: %w", remoteEventID, err)
	}
	return state, nil
}

// RemoveBot issues "ensure bot absent" for the event. A provider 404 means
// no bot was scheduled, which is the desired state, so it is not an error.
func (c *Client) RemoveBot(ctx context.Context, remoteEventID string) error {
	err := c.do(ctx, "DELETE", c.endpoint("calendar-events", remoteEventID, "bot"), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("removing bot for event %s: %w", remoteEventID, err)
	}
	return nil
}

// GetBot fetches the full bot record, including recording URLs and media
// references that status webhooks omit.
func (c *Client) GetBot(ctx context.Context, botID string) (map[string]interface{}, error) {
	var bot map[string]interface{}
	if err := c.do(ctx, "GET", c.endpoint("bots", botID), nil, &bot); err != nil {
		return nil, fmt.Errorf("fetching bot %s: %w", botID, err)
	}
	return bot, nil
}

// transcriptEnvelope covers the shapes the transcript endpoint returns: an
// inline segment array, or an object referencing a separate download URL.
type transcriptEnvelope struct {
	DownloadURL string `json:"download_url"`
}

// GetBotTranscript fetches the transcript for a bot. The provider may return
// the segments inline, or an object with a download URL to fetch separately,
// or nothing at all; an absent transcript yields an empty slice, not an
// error.
func (c *Client) GetBotTranscript(ctx context.Context, botID string) ([]map[string]interface{}, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", c.endpoint("bots", botID, "transcript"), nil, &raw); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching transcript for bot %s: %w", botID, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// Inline array shape.
	var segments []map[string]interface{}
	if err := json.Unmarshal(raw, &segments); err == nil {
		return segments, nil
	}

	// Download-URL shape.
	var envelope transcriptEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.DownloadURL == "" {
		return nil, nil
	}
	if err := c.do(ctx, "GET", envelope.DownloadURL, nil, &segments); err != nil {
		return nil, fmt.Errorf("downloading transcript for bot %s: %w", botID, err)
	}
	return segments, nil
}

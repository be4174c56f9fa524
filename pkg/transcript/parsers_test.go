package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestExtractSegments_WordSegments(t *testing.T) {
	payload := decode(t, `{
		"data": {
			"transcript": [
				{
					"participant": {"name": "Alice"},
					"words": [
						{"text": "hello", "start_timestamp": {"relative": 1.5}, "end_timestamp": {"relative": 2.0}},
						{"text": "there", "start_timestamp": {"relative": 2.1}, "end_timestamp": {"relative": 2.6}}
					]
				},
				{
					"participant": {"name": "Bob"},
					"words": [
						{"text": "hi", "start_timestamp": {"relative": 3.0}, "end_timestamp": {"relative": 3.2}}
					]
				}
			]
		}
	}`)

	segments := ExtractSegments(payload)
	require.Len(t, segments, 2)

	assert.Equal(t, Segment{Speaker: "Alice", Text: "hello there", StartMs: 1500, EndMs: 2600}, segments[0])
	assert.Equal(t, Segment{Speaker: "Bob", Text: "hi", StartMs: 3000, EndMs: 3200}, segments[1])
}

func TestExtractSegments_PlainNumberTimestamps(t *testing.T) {
	payload := decode(t, `{
		"transcript": [
			{"speaker": "Alice", "words": [
				{"text": "one", "start_timestamp": 4.0, "end_timestamp": 4.5}
			]}
		]
	}`)

	segments := ExtractSegments(payload)
	require.Len(t, segments, 1)
	assert.Equal(t, int64(4000), segments[0].StartMs)
	assert.Equal(t, int64(4500), segments[0].EndMs)
	assert.Equal(t, "Alice", segments[0].Speaker)
}

func TestExtractSegments_FlatWords(t *testing.T) {
	payload := decode(t, `{
		"data": {
			"data": {
				"speaker": "Alice",
				"words": [
					{"text": "partial", "start_timestamp": {"relative": 10.0}},
					{"text": "update", "end_timestamp": {"relative": 11.0}}
				]
			}
		}
	}`)

	segments := ExtractSegments(payload)
	require.Len(t, segments, 1)
	assert.Equal(t, "partial update", segments[0].Text)
	assert.Equal(t, int64(10000), segments[0].StartMs)
	assert.Equal(t, int64(11000), segments[0].EndMs)
}

func TestExtractSegments_LegacySegments(t *testing.T) {
	t.Run("seconds field", func(t *testing.T) {
		payload := decode(t, `{"transcript": {"segments": [
			{"speaker": "Alice", "text": "legacy line", "start": 2.0, "end": 3.5}
		]}}`)

		segments := ExtractSegments(payload)
		require.Len(t, segments, 1)
		assert.Equal(t, Segment{Speaker: "Alice", Text: "legacy line", StartMs: 2000, EndMs: 3500}, segments[0])
	})

	t.Run("millisecond field", func(t *testing.T) {
		payload := decode(t, `{"transcript": {"segments": [
			{"text": "ms line", "start_ms": 2500, "end_ms": 4000}
		]}}`)

		segments := ExtractSegments(payload)
		require.Len(t, segments, 1)
		assert.Equal(t, int64(2500), segments[0].StartMs)
		assert.Equal(t, int64(4000), segments[0].EndMs)
	})

	t.Run("start_time alias", func(t *testing.T) {
		payload := decode(t, `{"transcript": {"segments": [
			{"text": "aliased", "start_time": 1.0, "end_time": 2.0}
		]}}`)

		segments := ExtractSegments(payload)
		require.Len(t, segments, 1)
		assert.Equal(t, int64(1000), segments[0].StartMs)
	})

	t.Run("first present time field wins", func(t *testing.T) {
		payload := decode(t, `{"transcript": {"segments": [
			{"text": "both", "start": 1.0, "start_ms": 9999, "end": 2.0}
		]}}`)

		segments := ExtractSegments(payload)
		require.Len(t, segments, 1)
		assert.Equal(t, int64(1000), segments[0].StartMs)
	})
}

func TestExtractSegments_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty payload", `{}`},
		{"status-only event", `{"event": "bot.status_change", "data": {"bot_id": "b1", "status": {"code": "done"}}}`},
		{"segments without time bounds", `{"transcript": {"segments": [{"text": "no times"}]}}`},
		{"words without text", `{"transcript": [{"words": [{"start_timestamp": 1.0}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ExtractSegments(decode(t, tt.raw)))
		})
	}
}

func TestParseProviderTranscript(t *testing.T) {
	raw := []map[string]interface{}{
		{
			"participant": map[string]interface{}{"name": "Alice"},
			"words": []interface{}{
				map[string]interface{}{"text": "fetched", "start_timestamp": map[string]interface{}{"relative": 0.5}, "end_timestamp": map[string]interface{}{"relative": 1.0}},
			},
		},
	}

	segments := ParseProviderTranscript(raw)
	require.Len(t, segments, 1)
	assert.Equal(t, "fetched", segments[0].Text)
	assert.Equal(t, "Alice", segments[0].Speaker)
	assert.Equal(t, int64(500), segments[0].StartMs)
}

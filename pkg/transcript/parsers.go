package transcript

import "strings"

// The provider delivers transcripts in several shapes, and the shape is not
// announced; each parser matches a discriminated shape by the presence of
// characteristic fields and returns normalized segments or "no match".
// Parsers are tried in priority order; an unrecognized shape yields zero
// segments, never an error.

// ExtractSegments walks the candidate payload locations and runs the shape
// parsers over each, returning the first non-empty result.
func ExtractSegments(payload map[string]interface{}) []Segment {
	for _, candidate := range candidateNodes(payload) {
		if segments := parseAny(candidate); len(segments) > 0 {
			return segments
		}
	}
	return nil
}

// candidateNodes lists the payload locations that may carry transcript
// content, most specific first.
func candidateNodes(payload map[string]interface{}) []interface{} {
	var nodes []interface{}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		if v, ok := data["transcript"]; ok {
			nodes = append(nodes, v)
		}
		if v, ok := data["data"]; ok {
			nodes = append(nodes, v)
		}
		nodes = append(nodes, data)
	}
	if v, ok := payload["transcript"]; ok {
		nodes = append(nodes, v)
	}
	nodes = append(nodes, payload)
	return nodes
}

func parseAny(v interface{}) []Segment {
	if segments, ok := parseWordSegments(v); ok {
		return segments
	}
	if segments, ok := parseFlatWords(v); ok {
		return segments
	}
	if segments, ok := parseLegacySegments(v); ok {
		return segments
	}
	return nil
}

// ParseProviderTranscript normalizes the segment list returned by the
// provider's transcript endpoint (used by the fallback fetch). It is the
// word-segment shape, but the same parser chain covers legacy responses.
func ParseProviderTranscript(raw []map[string]interface{}) []Segment {
	nodes := make([]interface{}, len(raw))
	for i, m := range raw {
		nodes[i] = m
	}
	return parseAny(nodes)
}

// parseWordSegments matches the "array of participant segments with word
// lists" shape: each element carries a words array; segment text is the
// concatenated word text, and the segment bounds are the first and last
// word timestamps.
func parseWordSegments(v interface{}) ([]Segment, bool) {
	items, ok := v.([]interface{})
	if !ok || len(items) == 0 {
		return nil, false
	}

	var segments []Segment
	matched := false
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		words, ok := entry["words"].([]interface{})
		if !ok {
			return nil, false
		}
		matched = true

		segment, ok := segmentFromWords(words, speakerOf(entry))
		if ok {
			segments = append(segments, segment)
		}
	}
	if !matched {
		return nil, false
	}
	return segments, true
}

// parseFlatWords matches a flat "words" array representing one streaming
// chunk and synthesizes a single segment from it.
func parseFlatWords(v interface{}) ([]Segment, bool) {
	entry, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	words, ok := entry["words"].([]interface{})
	if !ok {
		return nil, false
	}
	segment, ok := segmentFromWords(words, speakerOf(entry))
	if !ok {
		return nil, true
	}
	return []Segment{segment}, true
}

// parseLegacySegments matches the legacy "segments" array with varied
// field naming for the time bounds: start, start_ms, start_time, first
// present wins (and likewise for end).
func parseLegacySegments(v interface{}) ([]Segment, bool) {
	items, ok := v.([]interface{})
	if !ok {
		if entry, isMap := v.(map[string]interface{}); isMap {
			items, ok = entry["segments"].([]interface{})
		}
		if !ok {
			return nil, false
		}
	}
	if len(items) == 0 {
		return nil, false
	}

	var segments []Segment
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		text, ok := entry["text"].(string)
		if !ok {
			return nil, false
		}

		startMs, startOK := legacyTimeMs(entry, "start", "start_ms", "start_time")
		endMs, endOK := legacyTimeMs(entry, "end", "end_ms", "end_time")
		if !startOK && !endOK {
			return nil, false
		}

		segments = append(segments, Segment{
			Speaker: speakerOf(entry),
			Text:    text,
			StartMs: startMs,
			EndMs:   endMs,
		})
	}
	return segments, true
}

// segmentFromWords builds one segment from a word list. Word timestamps may
// be plain numbers or objects with a "relative" field; both are handled.
func segmentFromWords(words []interface{}, speaker string) (Segment, bool) {
	var (
		texts   []string
		startMs int64
		endMs   int64
		haveTs  bool
	)
	for i, w := range words {
		word, ok := w.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := word["text"].(string); ok && text != "" {
			texts = append(texts, text)
		}
		if ms, ok := timestampMs(word["start_timestamp"]); ok && (i == 0 || !haveTs) {
			startMs = ms
			haveTs = true
		}
		if ms, ok := timestampMs(word["end_timestamp"]); ok {
			endMs = ms
		}
	}
	if len(texts) == 0 {
		return Segment{}, false
	}
	return Segment{
		Speaker: speaker,
		Text:    strings.Join(texts, " "),
		StartMs: startMs,
		EndMs:   endMs,
	}, true
}

// timestampMs normalizes a word timestamp: a plain number of seconds, or an
// object whose "relative" field is seconds.
func timestampMs(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t * 1000), true
	case map[string]interface{}:
		if rel, ok := t["relative"].(float64); ok {
			return int64(rel * 1000), true
		}
	}
	return 0, false
}

// legacyTimeMs extracts the time bound from the first present legacy field.
// The _ms variant is already in milliseconds; the others are seconds.
func legacyTimeMs(entry map[string]interface{}, secondsKey, msKey, altSecondsKey string) (int64, bool) {
	if v, ok := entry[secondsKey].(float64); ok {
		return int64(v * 1000), true
	}
	if v, ok := entry[msKey].(float64); ok {
		return int64(v), true
	}
	if v, ok := entry[altSecondsKey].(float64); ok {
		return int64(v * 1000), true
	}
	return 0, false
}

// speakerOf extracts the speaker label from the shapes that carry one.
func speakerOf(entry map[string]interface{}) string {
	if participant, ok := entry["participant"].(map[string]interface{}); ok {
		if name, ok := participant["name"].(string); ok {
			return name
		}
	}
	if speaker, ok := entry["speaker"].(string); ok {
		return speaker
	}
	return ""
}

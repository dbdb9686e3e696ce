// Package shaper implements the response-shaping rules applied to log
// query results: raw/truncated/summary output with a "smart" mode that
// auto-resolves based on result size, plus pattern normalization and
// level detection for summaries.
package shaper

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mode selects how a log query result is rendered.
type Mode string

const (
	ModeRaw       Mode = "raw"
	ModeTruncated Mode = "truncated"
	ModeSummary   Mode = "summary"
	ModeSmart     Mode = "smart"
)

// ResolveForLineCount applies the smart-mode auto-resolution rule: up to
// 50 lines stays raw, up to 500 is truncated, beyond that is summarized.
// Non-smart modes pass through unchanged.
func (m Mode) ResolveForLineCount(lineCount int) Mode {
	if m != ModeSmart {
		return m
	}
	switch {
	case lineCount <= 50:
		return ModeRaw
	case lineCount <= 500:
		return ModeTruncated
	default:
		return ModeSummary
	}
}

// LogLineEntry is a single flattened log line extracted from a Loki
// query_range streams response.
type LogLineEntry struct {
	Timestamp string
	Line      string
	Stream    map[string]string
}

// FormatLogResult shapes a raw Loki query_range payload according to the
// requested mode, returning the mode actually applied and the JSON-shaped
// result payload.
func FormatLogResult(requestedMode Mode, rawData json.RawMessage) (Mode, map[string]any) {
	entries := FlattenLogEntries(rawData)
	appliedMode := requestedMode.ResolveForLineCount(len(entries))

	switch appliedMode {
	case ModeRaw:
		var raw any
		_ = json.Unmarshal(rawData, &raw)
		return appliedMode, map[string]any{
			"mode":        "raw",
			"total_lines": len(entries),
			"result":      raw,
		}
	case ModeTruncated:
		edge := 10
		if requestedMode == ModeSmart {
			edge = 15
		}
		lines, omitted := truncateLines(entries, edge)
		payload := map[string]any{
			"mode":           "truncated",
			"total_lines":    len(entries),
			"shown_lines":    len(lines),
			"omitted_lines":  omitted,
			"lines":          lines,
		}
		if requestedMode == ModeSmart {
			summary := summaryPayload(entries, false)
			payload["pattern_summary"] = summary["top_patterns"]
		}
		return appliedMode, payload
	case ModeSummary:
		includeSamples := requestedMode == ModeSmart
		return appliedMode, summaryPayload(entries, includeSamples)
	default:
		var raw any
		_ = json.Unmarshal(rawData, &raw)
		return ModeRaw, map[string]any{
			"mode":        "raw",
			"total_lines": len(entries),
			"result":      raw,
		}
	}
}

// FlattenLogEntries extracts a flat slice of (timestamp, line, stream
// labels) tuples from a Loki streams-shaped query_range result.
func FlattenLogEntries(rawData json.RawMessage) []LogLineEntry {
	var entries []LogLineEntry

	var envelope struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string        `json:"values"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rawData, &envelope); err != nil {
		return entries
	}

	for _, stream := range envelope.Result {
		streamLabels := stream.Stream
		if streamLabels == nil {
			streamLabels = map[string]string{}
		}
		for _, pair := range stream.Values {
			timestampNanos := pair[0]
			line := pair[1]

			timestamp, ok := nanosToRFC3339(timestampNanos)
			if !ok {
				timestamp = timestampNanos
			}

			entries = append(entries, LogLineEntry{
				Timestamp: timestamp,
				Line:      line,
				Stream:    streamLabels,
			})
		}
	}

	return entries
}

func truncateLines(entries []LogLineEntry, edgeCount int) ([]LogLineEntry, int) {
	if len(entries) <= edgeCount*2 {
		out := make([]LogLineEntry, len(entries))
		copy(out, entries)
		return out, 0
	}

	lines := make([]LogLineEntry, 0, edgeCount*2)
	lines = append(lines, entries[:edgeCount]...)
	lines = append(lines, entries[len(entries)-edgeCount:]...)

	omitted := len(entries) - len(lines)
	return lines, omitted
}

func summaryPayload(entries []LogLineEntry, includeSamples bool) map[string]any {
	levelCounts := map[string]uint64{}
	patternCounts := map[string]uint64{}
	patternSample := map[string]LogLineEntry{}
	timeBuckets := map[string]uint64{}

	var firstTimestamp, lastTimestamp *time.Time

	for _, entry := range entries {
		if level, ok := detectLevel(entry.Line); ok {
			levelCounts[level]++
		}

		pattern := normalizePattern(entry.Line)
		patternCounts[pattern]++
		if _, exists := patternSample[pattern]; !exists {
			patternSample[pattern] = entry
		}

		if ts, ok := parseEntryTimestamp(entry.Timestamp); ok {
			if firstTimestamp == nil || ts.Before(*firstTimestamp) {
				t := ts
				firstTimestamp = &t
			}
			if lastTimestamp == nil || ts.After(*lastTimestamp) {
				t := ts
				lastTimestamp = &t
			}

			bucket := timeBucket5m(ts)
			timeBuckets[bucket]++
		}
	}

	type patternCount struct {
		pattern string
		count   uint64
	}
	topPatterns := make([]patternCount, 0, len(patternCounts))
	for p, c := range patternCounts {
		topPatterns = append(topPatterns, patternCount{p, c})
	}
	sort.Slice(topPatterns, func(i, j int) bool {
		if topPatterns[i].count != topPatterns[j].count {
			return topPatterns[i].count > topPatterns[j].count
		}
		return topPatterns[i].pattern < topPatterns[j].pattern
	})
	if len(topPatterns) > 10 {
		topPatterns = topPatterns[:10]
	}

	patterns := make([]map[string]any, 0, len(topPatterns))
	for _, pc := range topPatterns {
		entry := map[string]any{
			"pattern": pc.pattern,
			"count":   pc.count,
		}
		if includeSamples {
			if sample, ok := patternSample[pc.pattern]; ok {
				entry["sample"] = map[string]any{
					"timestamp": sample.Timestamp,
					"line":      sample.Line,
				}
			} else {
				entry["sample"] = nil
			}
		}
		patterns = append(patterns, entry)
	}

	var firstOut, lastOut any
	if firstTimestamp != nil {
		firstOut = firstTimestamp.Format(time.RFC3339)
	}
	if lastTimestamp != nil {
		lastOut = lastTimestamp.Format(time.RFC3339)
	}

	return map[string]any{
		"mode":                "summary",
		"total_lines":         len(entries),
		"first_timestamp":     firstOut,
		"last_timestamp":      lastOut,
		"level_breakdown":     levelCounts,
		"top_patterns":        patterns,
		"time_distribution_5m": timeBuckets,
	}
}

func nanosToRFC3339(timestampNanos string) (string, bool) {
	nanos, err := strconv.ParseInt(timestampNanos, 10, 64)
	if err != nil {
		return "", false
	}
	seconds := floorDiv(nanos, 1_000_000_000)
	nanosPart := floorMod(nanos, 1_000_000_000)
	return time.Unix(seconds, nanosPart).UTC().Format(time.RFC3339), true
}

func parseEntryTimestamp(timestamp string) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339, timestamp); err == nil {
		return parsed.UTC(), true
	}
	if rfc, ok := nanosToRFC3339(timestamp); ok {
		if parsed, err := time.Parse(time.RFC3339, rfc); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func timeBucket5m(timestamp time.Time) string {
	bucketSeconds := floorDiv(timestamp.Unix(), 300) * 300
	return time.Unix(bucketSeconds, 0).UTC().Format(time.RFC3339)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

var levelOrder = []string{"error", "warn", "info", "debug", "trace"}

// detectLevel performs an ordered substring match, not a word-boundary
// match: "information" matches "info" before any later level is checked.
// Preserved unchanged per the original behavior.
func detectLevel(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, level := range levelOrder {
		if strings.Contains(lower, level) {
			return level, true
		}
	}
	return "", false
}

func normalizePattern(line string) string {
	var b strings.Builder
	previousWasDigit := false

	for _, r := range line {
		if r >= '0' && r <= '9' {
			if !previousWasDigit {
				b.WriteByte('#')
			}
			previousWasDigit = true
		} else {
			previousWasDigit = false
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

package backend

import (
	"encoding/json"
	"strconv"
)

// apiEnvelope mirrors the Loki JSON API's {status,data,warnings,error,
// errorType} response envelope.
type apiEnvelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Warnings  []string        `json:"warnings"`
	Error     string          `json:"error"`
	ErrorType string          `json:"errorType"`
}

// Health describes the outcome of a readiness/health probe against the
// backend.
type Health struct {
	Healthy    bool            `json:"healthy"`
	Message    *string         `json:"message,omitempty"`
	BuildInfo  json.RawMessage `json:"build_info,omitempty"`
	RingStatus json.RawMessage `json:"ring_status,omitempty"`
}

// QueryStats is the cost-estimation payload returned by index/stats (or
// reconstructed from a runtime-stats fallback query).
type QueryStats struct {
	BytesProcessed *uint64
	Streams        *uint64
	Chunks         *uint64
	Entries        *uint64
	Raw            json.RawMessage
}

var (
	bytesKeys   = []string{"bytes", "bytesProcessed", "bytes_processed"}
	streamsKeys = []string{"streams", "streamCount", "stream_count"}
	chunksKeys  = []string{"chunks", "chunkCount", "chunk_count"}
	entriesKeys = []string{"entries", "entryCount", "entry_count"}
)

// QueryStatsFromValue builds a QueryStats by alias-probing a raw JSON
// value for each of the known field-name variants Loki's index/stats
// endpoint has used across versions.
func QueryStatsFromValue(raw json.RawMessage) QueryStats {
	var obj map[string]json.RawMessage
	_ = json.Unmarshal(raw, &obj)

	return QueryStats{
		BytesProcessed: extractU64(obj, bytesKeys),
		Streams:        extractU64(obj, streamsKeys),
		Chunks:         extractU64(obj, chunksKeys),
		Entries:        extractU64(obj, entriesKeys),
		Raw:            raw,
	}
}

func extractU64(obj map[string]json.RawMessage, keys []string) *uint64 {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if v, ok := parseU64Value(raw); ok {
			return &v
		}
	}
	return nil
}

func parseU64Value(raw json.RawMessage) (uint64, bool) {
	var asUint uint64
	if err := json.Unmarshal(raw, &asUint); err == nil {
		return asUint, true
	}

	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil && asInt >= 0 {
		return uint64(asInt), true
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if v, err := strconv.ParseUint(asString, 10, 64); err == nil {
			return v, true
		}
	}

	return 0, false
}

package shaper

import (
	"encoding/json"
	"testing"
)

func streamsPayload(n int) json.RawMessage {
	values := make([]any, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, []string{"1700000000000000000", "line message"})
	}
	payload := map[string]any{
		"result": []any{
			map[string]any{
				"stream": map[string]string{"app": "checkout"},
				"values": values,
			},
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

func TestResolveForLineCountSmart(t *testing.T) {
	if got := ModeSmart.ResolveForLineCount(10); got != ModeRaw {
		t.Fatalf("got %v, want raw", got)
	}
	if got := ModeSmart.ResolveForLineCount(100); got != ModeTruncated {
		t.Fatalf("got %v, want truncated", got)
	}
	if got := ModeSmart.ResolveForLineCount(1000); got != ModeSummary {
		t.Fatalf("got %v, want summary", got)
	}
}

func TestResolveForLineCountNonSmartPassesThrough(t *testing.T) {
	if got := ModeRaw.ResolveForLineCount(10000); got != ModeRaw {
		t.Fatalf("got %v, want raw", got)
	}
}

func TestFormatLogResultRawUnderThreshold(t *testing.T) {
	mode, payload := FormatLogResult(ModeSmart, streamsPayload(10))
	if mode != ModeRaw {
		t.Fatalf("mode = %v, want raw", mode)
	}
	if payload["total_lines"] != 10 {
		t.Fatalf("total_lines = %v", payload["total_lines"])
	}
}

func TestFormatLogResultTruncatedIncludesPatternSummaryOnlyForSmart(t *testing.T) {
	_, payload := FormatLogResult(ModeSmart, streamsPayload(100))
	if _, ok := payload["pattern_summary"]; !ok {
		t.Fatal("expected pattern_summary under smart-resolved truncated mode")
	}

	_, payload2 := FormatLogResult(ModeTruncated, streamsPayload(100))
	if _, ok := payload2["pattern_summary"]; ok {
		t.Fatal("did not expect pattern_summary under explicit truncated mode")
	}
}

func TestFormatLogResultSummaryIncludesSamplesOnlyForSmart(t *testing.T) {
	_, payload := FormatLogResult(ModeSmart, streamsPayload(600))
	patterns := payload["top_patterns"].([]map[string]any)
	if len(patterns) == 0 {
		t.Fatal("expected at least one pattern")
	}
	if _, ok := patterns[0]["sample"]; !ok {
		t.Fatal("expected sample under smart-resolved summary mode")
	}

	_, payload2 := FormatLogResult(ModeSummary, streamsPayload(600))
	patterns2 := payload2["top_patterns"].([]map[string]any)
	if _, ok := patterns2[0]["sample"]; ok {
		t.Fatal("did not expect sample under explicit summary mode")
	}
}

func TestDetectLevelNaiveSubstringMatch(t *testing.T) {
	level, ok := detectLevel("this is useful information")
	if !ok || level != "info" {
		t.Fatalf("got %q, %v, want info, true (preserved substring-match quirk)", level, ok)
	}
}

func TestNormalizePatternCollapsesDigitsAndWhitespace(t *testing.T) {
	got := normalizePattern("user   42   logged in   at 13:05:09")
	want := "user # logged in at #:#:#"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTruncateLinesEdgeCounts(t *testing.T) {
	entries := make([]LogLineEntry, 40)
	lines, omitted := truncateLines(entries, 15)
	if len(lines) != 30 || omitted != 10 {
		t.Fatalf("got %d lines, %d omitted", len(lines), omitted)
	}
}

package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rcourtman/loki-mcp-gateway/internal/audit"
	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/telemetry"
)

// newGuardrailTestDispatcher builds a Dispatcher against a fake backend
// that serves indexStatsBody from /loki/api/v1/index/stats and a bare
// {"result":[]} body everywhere else. That body has no "success" status
// envelope, so the query_range runtime-stats fallback fails and the index
// stats are evaluated on their own. Guardrail settings are the defaults
// (max_bytes_scanned=500MB,
// max_streams=5000, skip_stats_if_streams_below=50,
// skip_stats_if_range_shorter_than=15m).
func newGuardrailTestDispatcher(t *testing.T, indexStatsBody string) *Dispatcher {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/index/stats") {
			w.Write([]byte(indexStatsBody))
			return
		}
		w.Write([]byte(`{"result":[]}`))
	}))
	t.Cleanup(upstream.Close)

	client, err := backend.New(backend.Config{URL: upstream.URL, AuthType: "none"})
	if err != nil {
		t.Fatalf("failed to build backend client: %v", err)
	}

	cfg := config.Defaults()
	cfg.Backend.URL = upstream.URL

	reg, err := telemetry.New("loki_mcp_guardrail_test")
	if err != nil {
		t.Fatalf("failed to build telemetry registry: %v", err)
	}

	d, err := New(cfg, client, reg)
	if err != nil {
		t.Fatalf("failed to build dispatcher: %v", err)
	}
	return d
}

func TestEnforceGuardrailsFailsClosedOnMissingStreamEstimate(t *testing.T) {
	d := newGuardrailTestDispatcher(t, `{}`)

	params := map[string]interface{}{
		"labels": map[string]interface{}{"app": "api"},
		"start":  "2026-07-30T00:00:00Z",
		"end":    "2026-07-30T01:00:00Z",
	}

	err := d.enforceGuardrails(context.Background(), "loki_query_logs", params)
	if err == nil {
		t.Fatal("expected guardrail rejection when stream estimates are missing")
	}
	if !strings.Contains(err.Error(), "missing stream estimates") {
		t.Fatalf("expected missing-stream-estimates error, got: %v", err)
	}
}

func TestEnforceGuardrailsFailsClosedOnMissingByteEstimate(t *testing.T) {
	d := newGuardrailTestDispatcher(t, `{"streams": 100}`)

	params := map[string]interface{}{
		"labels": map[string]interface{}{"app": "api"},
		"start":  "2026-07-30T00:00:00Z",
		"end":    "2026-07-30T01:00:00Z",
	}

	err := d.enforceGuardrails(context.Background(), "loki_query_logs", params)
	if err == nil {
		t.Fatal("expected guardrail rejection when byte estimates are missing")
	}
	if !strings.Contains(err.Error(), "missing byte estimates") {
		t.Fatalf("expected missing-byte-estimates error, got: %v", err)
	}
}

func TestEnforceGuardrailsAdmitsWholeRangeBelowStreamThreshold(t *testing.T) {
	// Streams (10) is below the default skip_stats_if_streams_below (50),
	// so the range is admitted outright even though bytes (999GB) would
	// otherwise exceed the default 500MB ceiling.
	d := newGuardrailTestDispatcher(t, `{"streams": 10, "bytes": 999000000000}`)

	params := map[string]interface{}{
		"labels": map[string]interface{}{"app": "api"},
		"start":  "2026-07-30T00:00:00Z",
		"end":    "2026-07-30T01:00:00Z",
	}

	if err := d.enforceGuardrails(context.Background(), "loki_query_logs", params); err != nil {
		t.Fatalf("expected range below the stream threshold to be admitted, got: %v", err)
	}
}

func TestEnforceGuardrailsRejectsOverLimitBytesAboveStreamThreshold(t *testing.T) {
	d := newGuardrailTestDispatcher(t, `{"streams": 100, "bytes": 999000000000}`)

	params := map[string]interface{}{
		"labels": map[string]interface{}{"app": "api"},
		"start":  "2026-07-30T00:00:00Z",
		"end":    "2026-07-30T01:00:00Z",
	}

	err := d.enforceGuardrails(context.Background(), "loki_query_logs", params)
	if err == nil {
		t.Fatal("expected guardrail rejection when bytes exceed the configured limit")
	}
	if !strings.Contains(err.Error(), "bytes scanned") {
		t.Fatalf("expected a bytes-scanned rejection, got: %v", err)
	}
}

func TestResolveCompareRangesChecksRangesIndependently(t *testing.T) {
	d := newGuardrailTestDispatcher(t, `{}`)

	params := map[string]interface{}{
		"query":          `{app="api"}`,
		"baseline_start": "2026-07-30T00:00:00Z",
		"baseline_end":   "2026-07-29T00:00:00Z",
		"compare_start":  "2026-07-30T00:00:00Z",
		"compare_end":    "2026-07-30T01:00:00Z",
	}

	_, err := d.resolveCompareRanges(params)
	if err == nil {
		t.Fatal("expected an inverted baseline range to be rejected independently of the compare range")
	}
}

func TestClassifyErrorIdentifiesGuardrailRejections(t *testing.T) {
	outcome, class := classifyError("guardrail rejected query: estimated 999 bytes scanned exceeds configured limit")
	if class != "guardrail" {
		t.Fatalf("expected guardrail class, got %s", class)
	}
	if outcome != audit.OutcomeGuardrailReject {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
}

func TestClassifyErrorDefaultsToToolError(t *testing.T) {
	outcome, class := classifyError("loki returned non-success status: 500 Internal Server Error")
	if class != "tool_error" {
		t.Fatalf("expected tool_error class, got %s", class)
	}
	if outcome != audit.OutcomeError {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
}

func TestCacheKeyIsStableAcrossKeyOrdering(t *testing.T) {
	a := map[string]interface{}{"labels": map[string]interface{}{"app": "api", "env": "prod"}, "limit": float64(100)}
	b := map[string]interface{}{"limit": float64(100), "labels": map[string]interface{}{"env": "prod", "app": "api"}}

	keyA := cacheKey("loki_query_logs", a)
	keyB := cacheKey("loki_query_logs", b)
	if keyA != keyB {
		t.Fatalf("expected identical cache keys, got %s vs %s", keyA, keyB)
	}
}

func TestCacheKeyDiffersByTool(t *testing.T) {
	params := map[string]interface{}{"query": "{app=\"api\"}"}
	if cacheKey("loki_query_stats", params) == cacheKey("loki_detect_patterns", params) {
		t.Fatal("expected cache keys to differ by tool name")
	}
}

func TestKnownToolRecognizesAllRegisteredNames(t *testing.T) {
	for _, name := range []string{"loki_describe_schema", "loki_check_health", "loki_query_logs"} {
		if !knownTool(name) {
			t.Fatalf("expected %s to be recognized", name)
		}
	}
	if knownTool("not_a_real_tool") {
		t.Fatal("expected unknown tool to be rejected")
	}
}

func TestMergeStatsPrefersNonZeroPrimaryOverFallback(t *testing.T) {
	primaryBytes := uint64(500)
	fallbackBytes := uint64(10)
	fallbackStreams := uint64(3)

	primary := backend.QueryStats{BytesProcessed: &primaryBytes}
	fallback := backend.QueryStats{BytesProcessed: &fallbackBytes, Streams: &fallbackStreams}

	merged := mergeStats(primary, fallback)
	if merged.BytesProcessed == nil || *merged.BytesProcessed != primaryBytes {
		t.Fatalf("expected primary bytes to win, got %v", merged.BytesProcessed)
	}
	if merged.Streams == nil || *merged.Streams != fallbackStreams {
		t.Fatalf("expected fallback streams to fill the gap, got %v", merged.Streams)
	}
}

func TestNeedsRuntimeStatsFallbackWhenBothZero(t *testing.T) {
	zero := uint64(0)
	stats := backend.QueryStats{BytesProcessed: &zero, Streams: &zero}
	if !needsRuntimeStatsFallback(stats) {
		t.Fatal("expected fallback to be needed when both fields are zero")
	}

	nonZero := uint64(42)
	stats2 := backend.QueryStats{BytesProcessed: &nonZero, Streams: &zero}
	if needsRuntimeStatsFallback(stats2) {
		t.Fatal("expected no fallback when bytes is nonzero")
	}
}

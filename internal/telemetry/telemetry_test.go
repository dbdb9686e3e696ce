package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExposesCountersViaHandler(t *testing.T) {
	reg, err := New("loki_mcp_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg.IncHTTPRequests()
	reg.IncToolCall("loki_query_logs", "success")
	reg.IncToolCacheHit("loki_query_logs")
	reg.IncToolCacheMiss("loki_tail")
	reg.IncToolGuardrailRejection("loki_query_logs")
	reg.IncToolRateLimited("loki_tail")
	reg.IncReadinessCacheHit()
	reg.IncReadinessCacheMiss()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	reg.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"loki_mcp_test_http_requests_total",
		`loki_mcp_test_tool_calls_total{outcome="success",tool="loki_query_logs"}`,
		`loki_mcp_test_tool_cache_total{result="hit",tool="loki_query_logs"}`,
		`loki_mcp_test_tool_guardrail_rejections_total{tool="loki_query_logs"}`,
		`loki_mcp_test_tool_rate_limited_total{tool="loki_tail"}`,
		`loki_mcp_test_readiness_cache_total{result="hit"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestNewAllowsSamePrefixInSeparateRegistries(t *testing.T) {
	if _, err := New("dup_prefix"); err != nil {
		t.Fatalf("unexpected error on first registration: %v", err)
	}
	if _, err := New("dup_prefix"); err != nil {
		t.Fatalf("unexpected error on separate registry with same prefix: %v", err)
	}
}

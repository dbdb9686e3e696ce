package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/dispatcher"
	"github.com/rcourtman/loki-mcp-gateway/internal/telemetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	client, err := backend.New(backend.Config{URL: upstream.URL, AuthType: "none"})
	if err != nil {
		t.Fatalf("failed to build backend client: %v", err)
	}

	cfg := config.Defaults()
	cfg.Backend.URL = upstream.URL

	reg, err := telemetry.New("loki_mcp_test")
	if err != nil {
		t.Fatalf("failed to build telemetry registry: %v", err)
	}

	disp, err := dispatcher.New(cfg, client, reg)
	if err != nil {
		t.Fatalf("failed to build dispatcher: %v", err)
	}

	return New(cfg, client, disp, reg)
}

func TestHealthzAlwaysReportsOK(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRecentActionsReturns404WhenDisabled(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/recent-actions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when recent actions disabled, got %d", rec.Code)
	}
}

func TestMCPRejectsNonPost(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRequestContextMiddlewareSetsRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("x-request-id") == "" {
		t.Fatal("expected x-request-id header to be set")
	}
}

// Package httpapi is the gateway's HTTP transport: the MCP JSON-RPC
// endpoint, health/readiness probes, the Prometheus metrics endpoint,
// and the recent-actions debug endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/dispatcher"
	"github.com/rcourtman/loki-mcp-gateway/internal/identity"
	"github.com/rcourtman/loki-mcp-gateway/internal/mcp"
	"github.com/rcourtman/loki-mcp-gateway/internal/telemetry"
)

// readinessCacheTTL bounds how often /readyz actually probes the
// backend; readiness rarely changes faster than this and the backend
// shouldn't see a probe on every load-balancer health check.
const readinessCacheTTL = 3 * time.Second

// Server wires the gateway's HTTP surface together.
type Server struct {
	cfg        config.Config
	client     *backend.Client
	dispatcher *dispatcher.Dispatcher
	telemetry  *telemetry.Registry

	requestCounter atomic.Uint64

	readiness readinessCache
}

type readinessCache struct {
	mu       chan struct{} // 1-buffered mutex
	expires  time.Time
	lastSeen backend.Health
}

// New builds the HTTP handler tree for the gateway.
func New(cfg config.Config, client *backend.Client, disp *dispatcher.Dispatcher, reg *telemetry.Registry) *Server {
	s := &Server{
		cfg:        cfg,
		client:     client,
		dispatcher: disp,
		telemetry:  reg,
		readiness:  readinessCache{mu: make(chan struct{}, 1)},
	}
	s.readiness.mu <- struct{}{}
	return s
}

// Handler returns the fully-routed HTTP handler, wrapped in the
// request-context middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/debug/recent-actions", s.handleRecentActions)
	mux.HandleFunc("/mcp", s.handleMCP)
	return s.withRequestContext(mux)
}

// withRequestContext assigns a sequential request ID to every inbound
// request and echoes it back on the response, for log correlation.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := "req-" + strconv.FormatUint(s.requestCounter.Add(1), 10)
		w.Header().Set("x-request-id", id)
		r.Header.Set("X-Request-Id", id)
		s.telemetry.IncHTTPRequests()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	health := s.cachedHealth(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// cachedHealth serves backend.CheckHealth results from a short-lived
// cache so readiness probes don't hammer the backend.
func (s *Server) cachedHealth(ctx context.Context) backend.Health {
	<-s.readiness.mu
	defer func() { s.readiness.mu <- struct{}{} }()

	now := time.Now()
	if now.Before(s.readiness.expires) {
		s.telemetry.IncReadinessCacheHit()
		return s.readiness.lastSeen
	}

	s.telemetry.IncReadinessCacheMiss()
	health, err := s.client.CheckHealth(ctx)
	if err != nil {
		msg := err.Error()
		health = backend.Health{Healthy: false, Message: &msg}
	}
	s.readiness.lastSeen = health
	s.readiness.expires = now.Add(readinessCacheTTL)
	return health
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.telemetry.Handler().ServeHTTP(w, r)
}

func (s *Server) handleRecentActions(w http.ResponseWriter, r *http.Request) {
	store := s.dispatcher.AuditLog()
	if store == nil {
		http.NotFound(w, r)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": store.List(limit)})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req mcp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, mcp.ErrParse, "failed to parse JSON-RPC request")
		return
	}

	if req.JSONRPC != "2.0" {
		writeJSONRPCError(w, req.ID, mcp.ErrInvalidRequest, "invalid JSON-RPC version")
		return
	}

	switch req.Method {
	case "initialize":
		s.writeResult(w, req.ID, mcp.ServerInfo{
			Name:         mcp.ServerName,
			Version:      "1.0.0",
			Capabilities: mcp.Capabilities{Tools: &mcp.ToolsCapability{}},
		})
	case "tools/list":
		s.writeResult(w, req.ID, mcp.ListToolsResult{Tools: mcp.BuildTools()})
	case "tools/call":
		s.handleCallTool(w, r, req)
	case "ping":
		s.writeResult(w, req.ID, map[string]interface{}{})
	default:
		writeJSONRPCError(w, req.ID, mcp.ErrMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request, req mcp.Request) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, mcp.ErrInvalidParams, "failed to parse tool call params")
		return
	}

	identityValue := identity.Resolve(r, s.cfg.Server.IdentityHeader)
	requestID := r.Header.Get("X-Request-Id")

	result, err := s.dispatcher.Call(r.Context(), dispatcher.CallInput{
		ToolName:     params.Name,
		Arguments:    params.Arguments,
		Identity:     identityValue,
		IdentityHash: identity.Hash(identityValue),
		TenantID:     s.cfg.Backend.TenantID,
		RequestID:    requestID,
	})
	if err != nil {
		log.Warn().Err(err).Str("tool", params.Name).Msg("rejected unknown tool call")
		writeJSONRPCError(w, req.ID, mcp.ErrInvalidParams, err.Error())
		return
	}

	s.writeResult(w, req.ID, result)
}

func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, mcp.ErrInternal, "failed to encode result")
		return
	}
	writeJSON(w, http.StatusOK, mcp.Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, http.StatusOK, mcp.Response{
		JSONRPC: "2.0", ID: id,
		Error: &mcp.Error{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Error().Err(err).Msg("failed to encode HTTP response")
	}
}

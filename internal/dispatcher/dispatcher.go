// Package dispatcher implements the gateway's unified tool-call
// pipeline: rate limiting, response caching, cost guardrails, the
// fifteen tool handlers, and audit/metrics recording around all of it.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rcourtman/loki-mcp-gateway/internal/audit"
	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/bytesize"
	"github.com/rcourtman/loki-mcp-gateway/internal/cache"
	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/mcp"
	"github.com/rcourtman/loki-mcp-gateway/internal/ratelimit"
	"github.com/rcourtman/loki-mcp-gateway/internal/telemetry"
	"github.com/rcourtman/loki-mcp-gateway/internal/timewindow"
)

// GuardrailSettings is the resolved, parsed form of the guardrails
// config section.
type GuardrailSettings struct {
	MaxBytesScanned             *uint64
	MaxStreams                  *uint64
	SkipStatsIfStreamsBelow     uint64
	SkipStatsIfRangeShorterThan time.Duration
}

func (g GuardrailSettings) enabled() bool {
	return g.MaxBytesScanned != nil || g.MaxStreams != nil
}

// Dispatcher is the unified tool-call pipeline.
type Dispatcher struct {
	cfg       config.Config
	client    *backend.Client
	loc       *time.Location
	cache     *cache.QueryCache
	cacheTTL  time.Duration
	cacheSkip time.Duration

	guardrails GuardrailSettings

	limiter   *ratelimit.Limiter
	auditLog  *audit.Store
	telemetry *telemetry.Registry
}

// New builds a Dispatcher from the resolved config, wiring the cache,
// rate limiter, and guardrail settings per configuration.
func New(cfg config.Config, client *backend.Client, reg *telemetry.Registry) (*Dispatcher, error) {
	loc, err := timewindow.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{cfg: cfg, client: client, loc: loc, telemetry: reg}

	if cfg.Cache.Enabled {
		ttl, err := timewindow.ParseStdDuration(cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid cache.ttl: %w", err)
		}
		skip, err := timewindow.ParseStdDuration(cfg.Cache.SkipIfRangeShorterThan)
		if err != nil {
			return nil, fmt.Errorf("invalid cache.skip_if_range_shorter_than: %w", err)
		}
		d.cache = cache.New(int(cfg.Cache.MaxEntries), ttl)
		d.cacheTTL = ttl
		d.cacheSkip = skip
	}

	maxBytes, err := bytesize.Parse(cfg.Guardrails.MaxBytesScanned)
	if err != nil {
		return nil, fmt.Errorf("invalid guardrails.max_bytes_scanned: %w", err)
	}
	skipRange, err := timewindow.ParseStdDuration(cfg.Guardrails.SkipStatsIfRangeShorterThan)
	if err != nil {
		return nil, fmt.Errorf("invalid guardrails.skip_stats_if_range_shorter_than: %w", err)
	}
	d.guardrails = GuardrailSettings{
		SkipStatsIfStreamsBelow:     cfg.Guardrails.SkipStatsIfStreamsBelow,
		SkipStatsIfRangeShorterThan: skipRange,
	}
	if maxBytes > 0 {
		d.guardrails.MaxBytesScanned = &maxBytes
	}
	if cfg.Guardrails.MaxStreams > 0 {
		streams := cfg.Guardrails.MaxStreams
		d.guardrails.MaxStreams = &streams
	}

	if cfg.RateLimit.Enabled {
		d.limiter = ratelimit.New(cfg.RateLimit.RPS, int(cfg.RateLimit.Burst))
	}

	if cfg.RecentActions.Enabled {
		ttl, err := timewindow.ParseStdDuration(cfg.RecentActions.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid recent_actions.ttl: %w", err)
		}
		d.auditLog = audit.NewStore(int(cfg.RecentActions.MaxEntries), ttl, cfg.RecentActions.StoreQueryText, cfg.RecentActions.StoreErrorText)
	}

	return d, nil
}

// AuditLog exposes the recent-actions store for the debug endpoint. It
// is nil if recent-action tracking is disabled.
func (d *Dispatcher) AuditLog() *audit.Store { return d.auditLog }

// CallInput is everything the dispatcher needs to process one tool
// invocation, already resolved by the transport layer.
type CallInput struct {
	ToolName     string
	Arguments    map[string]interface{}
	Identity     string
	IdentityHash string
	TenantID     string
	RequestID    string
}

// Call runs the full pipeline for one tool invocation. A non-nil
// returned error means the tool name itself was invalid — a
// protocol-level condition the transport layer should surface as a
// JSON-RPC error rather than a structured tool result. Every other
// outcome (rate limiting, guardrail rejection, handler error, success)
// comes back as a CallToolResult with a nil error.
func (d *Dispatcher) Call(ctx context.Context, input CallInput) (mcp.CallToolResult, error) {
	start := time.Now()
	tool := input.ToolName

	if !knownTool(tool) {
		d.telemetry.IncToolCall(tool, "invalid_tool")
		d.record(audit.Input{
			RequestID: input.RequestID, Tool: tool, Outcome: audit.OutcomeInvalidTool,
			DurationMS: elapsedMillis(start), IdentityHash: input.IdentityHash, TenantID: input.TenantID,
			ErrorClass: "invalid_tool", Error: fmt.Sprintf("unknown tool: %s", tool),
		})
		return mcp.CallToolResult{}, fmt.Errorf("unknown tool: %s", tool)
	}

	queryText := extractQueryText(input.Arguments)

	if d.limiter != nil {
		if err := d.limiter.Check(tool, input.Identity, input.TenantID); err != nil {
			d.telemetry.IncToolRateLimited(tool)
			d.telemetry.IncToolCall(tool, "rate_limited")
			d.record(audit.Input{
				RequestID: input.RequestID, Tool: tool, Outcome: audit.OutcomeRateLimited,
				DurationMS: elapsedMillis(start), IdentityHash: input.IdentityHash, TenantID: input.TenantID,
				Query: queryText, ErrorClass: "rate_limited", Error: err.Error(),
			})
			return mcp.StructuredError(map[string]string{
				"error": err.Error(), "tool": tool, "identity": input.Identity,
			}), nil
		}
	}

	raw, err := d.innerCall(ctx, tool, input.Arguments)
	durationMS := elapsedMillis(start)

	if err != nil {
		outcome, class := classifyError(err.Error())
		d.telemetry.IncToolCall(tool, "error")
		if class == "guardrail" {
			d.telemetry.IncToolGuardrailRejection(tool)
		}
		d.record(audit.Input{
			RequestID: input.RequestID, Tool: tool, Outcome: outcome,
			DurationMS: durationMS, IdentityHash: input.IdentityHash, TenantID: input.TenantID,
			Query: queryText, ErrorClass: class, Error: err.Error(),
		})
		return mcp.StructuredError(map[string]string{"error": err.Error(), "tool": tool}), nil
	}

	d.telemetry.IncToolCall(tool, "success")
	d.record(audit.Input{
		RequestID: input.RequestID, Tool: tool, Outcome: audit.OutcomeSuccess,
		DurationMS: durationMS, IdentityHash: input.IdentityHash, TenantID: input.TenantID,
		Query: queryText,
	})
	return mcp.StructuredRaw(raw), nil
}

func (d *Dispatcher) record(input audit.Input) {
	if d.auditLog == nil {
		return
	}
	d.auditLog.Record(input)
}

// innerCall runs the cache-check, guardrail-enforcement, dispatch, and
// cache-write stages for one already rate-limit-cleared invocation.
func (d *Dispatcher) innerCall(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error) {
	params := normalizeParams(args)

	useCache, key := d.shouldUseCache(tool, params)
	if useCache {
		if cached, ok := d.cache.Get(key); ok {
			d.telemetry.IncToolCacheHit(tool)
			return cached, nil
		}
		d.telemetry.IncToolCacheMiss(tool)
	}

	if d.guardrails.enabled() && isGuardrailedTool(tool) {
		if err := d.enforceGuardrails(ctx, tool, params); err != nil {
			return nil, err
		}
	}

	result, err := d.dispatch(ctx, tool, params)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	if useCache {
		d.cache.Insert(key, raw)
	}

	return raw, nil
}

func knownTool(tool string) bool {
	for _, name := range mcp.ToolNames {
		if name == tool {
			return true
		}
	}
	return false
}

func extractQueryText(args map[string]interface{}) string {
	if args == nil {
		return ""
	}
	if v, ok := args["query"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func normalizeParams(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func elapsedMillis(start time.Time) uint64 {
	d := time.Since(start)
	if d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}

// classifyError maps a handler error message to an audit outcome and a
// coarse error class. A "guardrail" substring anywhere in the message
// (case-insensitive) identifies guardrail rejections; everything else
// is a generic tool error.
func classifyError(message string) (audit.Outcome, string) {
	if strings.Contains(strings.ToLower(message), "guardrail") {
		return audit.OutcomeGuardrailReject, "guardrail"
	}
	return audit.OutcomeError, "tool_error"
}

var cacheableTools = map[string]bool{
	"loki_list_labels":     true,
	"loki_label_values":    true,
	"loki_series":          true,
	"loki_query_logs":      true,
	"loki_query_metrics":   true,
	"loki_build_query":     true,
	"loki_tail":            true,
	"loki_run_saved_query": true,
	"loki_query_stats":     true,
	"loki_detect_patterns": true,
	"loki_compare_ranges":  true,
}

var guardrailedTools = map[string]bool{
	"loki_query_logs":      true,
	"loki_query_metrics":   true,
	"loki_build_query":     true,
	"loki_tail":            true,
	"loki_run_saved_query": true,
	"loki_detect_patterns": true,
	"loki_compare_ranges":  true,
}

func isGuardrailedTool(tool string) bool { return guardrailedTools[tool] }

// shouldUseCache decides whether a call is cacheable and, if so,
// returns its cache key. A range-parse failure is treated optimistically
// (cacheable), deferring validation to the dispatch stage itself.
func (d *Dispatcher) shouldUseCache(tool string, params map[string]interface{}) (bool, string) {
	if d.cache == nil || !cacheableTools[tool] {
		return false, ""
	}

	duration, hasDuration, err := d.cacheRangeDuration(tool, params)
	if err != nil {
		return true, cacheKey(tool, params)
	}
	if hasDuration && duration < d.cacheSkip {
		return false, ""
	}
	return true, cacheKey(tool, params)
}

// cacheKey builds a stable fingerprint for a tool call: the tool name
// plus a canonical JSON encoding of its parameters, sorted by key at
// every nesting level so that equivalent parameter objects with
// differently-ordered keys collide to the same key.
func cacheKey(tool string, params map[string]interface{}) string {
	canonical := canonicalizeJSON(params)
	raw, _ := json.Marshal(canonical)
	return fmt.Sprintf("%s:%s", tool, raw)
}

// canonicalizeJSON normalizes a decoded JSON value into a form whose
// json.Marshal output is deterministic: Go's encoding/json already
// sorts map[string]interface{} keys alphabetically at every level, so
// canonicalizing only requires ensuring nested values are plain
// map/slice/scalar types rather than a library-specific geometry.
func canonicalizeJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = canonicalizeJSON(v[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = canonicalizeJSON(item)
		}
		return out
	default:
		return v
	}
}

func needsRuntimeStatsFallback(stats backend.QueryStats) bool {
	bytesZero := stats.BytesProcessed == nil || *stats.BytesProcessed == 0
	streamsZero := stats.Streams == nil || *stats.Streams == 0
	return bytesZero && streamsZero
}

// mergeStats combines a primary stats reading with a runtime-stats
// fallback: the primary wins per-field whenever it is present and
// nonzero, otherwise the fallback fills the gap.
func mergeStats(primary, fallback backend.QueryStats) backend.QueryStats {
	merged := backend.QueryStats{
		BytesProcessed: pickNonZero(primary.BytesProcessed, fallback.BytesProcessed),
		Streams:        pickNonZero(primary.Streams, fallback.Streams),
		Chunks:         pickNonZero(primary.Chunks, fallback.Chunks),
		Entries:        pickNonZero(primary.Entries, fallback.Entries),
		Raw:            primary.Raw,
	}
	if merged.Raw == nil {
		merged.Raw = fallback.Raw
	}
	return merged
}

func pickNonZero(primary, fallback *uint64) *uint64 {
	if primary != nil && *primary != 0 {
		return primary
	}
	return fallback
}

// Package telemetry exposes a Prometheus counter registry for the
// gateway's HTTP and tool-call activity.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the counters emitted by the gateway, all namespaced
// under a configurable prefix so multiple deployments can be scraped
// without label collisions.
type Registry struct {
	registry *prometheus.Registry

	httpRequestsTotal            prometheus.Counter
	toolCallsTotal               *prometheus.CounterVec
	toolCacheTotal               *prometheus.CounterVec
	toolGuardrailRejectionsTotal *prometheus.CounterVec
	toolRateLimitedTotal         *prometheus.CounterVec
	readinessCacheTotal          *prometheus.CounterVec
}

// New builds a Registry with all counters registered under prefix
// (e.g. "loki_mcp" yields "loki_mcp_http_requests_total" etc).
func New(prefix string) (*Registry, error) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_requests_total", prefix),
			Help: "Total HTTP requests handled by the gateway",
		}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tool_calls_total", prefix),
			Help: "Total MCP tool calls partitioned by tool and outcome",
		}, []string{"tool", "outcome"}),
		toolCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tool_cache_total", prefix),
			Help: "Total cache lookups partitioned by tool and result",
		}, []string{"tool", "result"}),
		toolGuardrailRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tool_guardrail_rejections_total", prefix),
			Help: "Total MCP tool guardrail rejections partitioned by tool",
		}, []string{"tool"}),
		toolRateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tool_rate_limited_total", prefix),
			Help: "Total MCP tool calls rejected by rate limiting partitioned by tool",
		}, []string{"tool"}),
		readinessCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_readiness_cache_total", prefix),
			Help: "Total readiness cache lookups partitioned by result",
		}, []string{"result"}),
	}

	collectors := []prometheus.Collector{
		r.httpRequestsTotal,
		r.toolCallsTotal,
		r.toolCacheTotal,
		r.toolGuardrailRejectionsTotal,
		r.toolRateLimitedTotal,
		r.readinessCacheTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return r, nil
}

func (r *Registry) IncHTTPRequests() { r.httpRequestsTotal.Inc() }

func (r *Registry) IncToolCall(tool, outcome string) {
	r.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

func (r *Registry) IncToolCacheHit(tool string)  { r.toolCacheTotal.WithLabelValues(tool, "hit").Inc() }
func (r *Registry) IncToolCacheMiss(tool string) { r.toolCacheTotal.WithLabelValues(tool, "miss").Inc() }

func (r *Registry) IncToolGuardrailRejection(tool string) {
	r.toolGuardrailRejectionsTotal.WithLabelValues(tool).Inc()
}

func (r *Registry) IncToolRateLimited(tool string) {
	r.toolRateLimitedTotal.WithLabelValues(tool).Inc()
}

func (r *Registry) IncReadinessCacheHit()  { r.readinessCacheTotal.WithLabelValues("hit").Inc() }
func (r *Registry) IncReadinessCacheMiss() { r.readinessCacheTotal.WithLabelValues("miss").Inc() }

// Handler returns an http.Handler that renders the registry in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

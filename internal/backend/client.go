// Package backend implements the HTTP client for a Loki-compatible log
// backend: label/series discovery, log and metric range queries, index
// statistics, pattern detection, and health/readiness probing.
package backend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Loki-compatible HTTP API.
type Client struct {
	http     *http.Client
	baseURL  string
	tenantID string
	auth     Auth
}

// Config carries the subset of backend configuration the client needs to
// construct itself.
type Config struct {
	URL      string
	TenantID string
	AuthType string
	Username string
	Password string
	Token    string
	CACert   string
	Timeout  time.Duration
}

// New builds a Client from the given configuration, loading an optional
// CA certificate for TLS verification.
func New(cfg Config) (*Client, error) {
	auth, err := NewAuth(cfg.AuthType, cfg.Username, cfg.Password, cfg.Token)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CACert != "" {
		pemBytes, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", cfg.CACert, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("invalid PEM CA certificate at %s", cfg.CACert)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		tenantID: cfg.TenantID,
		auth:     auth,
	}, nil
}

// CheckHealth probes backend readiness and, best-effort, build info and
// ring status, producing an overall health verdict.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	readiness := c.probeReadiness(ctx)
	buildInfo := c.getOptionalJSON(ctx, "/loki/api/v1/status/buildinfo")
	ringStatus := c.getOptionalJSON(ctx, "/distributor/ring")

	apiReachable := false
	if readiness.kind == readinessStatus && readiness.status == http.StatusNotFound {
		apiReachable = buildInfo != nil || c.isAPIReachable(ctx)
	}

	healthy, message := evaluateHealth(readiness, apiReachable)

	return Health{
		Healthy:    healthy,
		Message:    message,
		BuildInfo:  buildInfo,
		RingStatus: ringStatus,
	}, nil
}

// Labels returns all known label names in the given time range.
func (c *Client) Labels(ctx context.Context, start, end *time.Time) ([]string, error) {
	params := url.Values{}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}

	var out []string
	if err := c.sendAPIData(ctx, http.MethodGet, "/loki/api/v1/labels", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LabelValues returns the known values for a label within the given time
// range, optionally filtered by a stream selector.
func (c *Client) LabelValues(ctx context.Context, label string, start, end *time.Time, query *string) ([]string, error) {
	if err := validateLabelName(label); err != nil {
		return nil, err
	}

	params := url.Values{}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}
	if query != nil {
		params.Set("query", *query)
	}

	path := fmt.Sprintf("/loki/api/v1/label/%s/values", label)
	var out []string
	if err := c.sendAPIData(ctx, http.MethodGet, path, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Series returns the set of label sets matching any of the given series
// selectors within the given time range.
func (c *Client) Series(ctx context.Context, matches []string, start, end *time.Time) ([]json.RawMessage, error) {
	if len(matches) == 0 {
		return nil, fmt.Errorf("at least one series matcher is required")
	}

	params := url.Values{}
	for _, matcher := range matches {
		params.Add("match[]", matcher)
	}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}

	var out []json.RawMessage
	if err := c.sendAPIData(ctx, http.MethodGet, "/loki/api/v1/series", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryLogs runs a LogQL log query over query_range.
func (c *Client) QueryLogs(ctx context.Context, query string, start, end *time.Time, limit *uint32, direction *string) (json.RawMessage, error) {
	params := url.Values{"query": {query}}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}
	if limit != nil {
		params.Set("limit", strconv.FormatUint(uint64(*limit), 10))
	}
	if direction != nil {
		params.Set("direction", *direction)
	}

	var out json.RawMessage
	if err := c.sendAPIData(ctx, http.MethodGet, "/loki/api/v1/query_range", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryMetrics runs a LogQL metric (range-aggregation) query over
// query_range.
func (c *Client) QueryMetrics(ctx context.Context, query string, start, end *time.Time, step *string) (json.RawMessage, error) {
	params := url.Values{"query": {query}}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}
	if step != nil {
		params.Set("step", *step)
	}

	var out json.RawMessage
	if err := c.sendAPIData(ctx, http.MethodGet, "/loki/api/v1/query_range", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryStats fetches cost-estimation statistics for a query over the
// given range via index/stats.
func (c *Client) QueryStats(ctx context.Context, query string, start, end *time.Time) (QueryStats, error) {
	params := url.Values{"query": {query}}
	if err := appendTimeRange(params, start, end); err != nil {
		return QueryStats{}, err
	}

	data, err := c.sendAPIDataOrRaw(ctx, "/loki/api/v1/index/stats", params)
	if err != nil {
		return QueryStats{}, err
	}
	return QueryStatsFromValue(data), nil
}

// DetectPatterns runs a pattern-detection query over /loki/api/v1/patterns.
func (c *Client) DetectPatterns(ctx context.Context, query string, start, end *time.Time, step *string) (json.RawMessage, error) {
	params := url.Values{"query": {query}}
	if err := appendTimeRange(params, start, end); err != nil {
		return nil, err
	}
	if step != nil {
		params.Set("step", *step)
	}

	var out json.RawMessage
	if err := c.sendAPIData(ctx, http.MethodGet, "/loki/api/v1/patterns", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryRuntimeStats reconstructs cost-estimate statistics from a minimal
// backward, limit=1 log query when index/stats reports nothing useful.
// This undercounts estimated_streams for high-cardinality queries since
// Loki stops scanning as soon as it has 1 result; kept unchanged per the
// original behavior.
func (c *Client) QueryRuntimeStats(ctx context.Context, query string, start, end *time.Time) (QueryStats, error) {
	one := uint32(1)
	backward := "backward"
	data, err := c.QueryLogs(ctx, query, start, end, &one, &backward)
	if err != nil {
		return QueryStats{}, err
	}

	var envelope struct {
		Stats json.RawMessage `json:"stats"`
		Result []json.RawMessage `json:"result"`
	}
	_ = json.Unmarshal(data, &envelope)

	var summary struct {
		TotalBytesProcessed *uint64 `json:"totalBytesProcessed"`
		TotalLinesProcessed *uint64 `json:"totalLinesProcessed"`
		TotalChunksMatched  *uint64 `json:"totalChunksMatched"`
	}
	if envelope.Stats != nil {
		var wrapper struct {
			Summary json.RawMessage `json:"summary"`
		}
		if err := json.Unmarshal(envelope.Stats, &wrapper); err == nil && wrapper.Summary != nil {
			_ = json.Unmarshal(wrapper.Summary, &summary)
		}
	}

	var streams *uint64
	if envelope.Result != nil {
		n := uint64(len(envelope.Result))
		streams = &n
	}

	raw := envelope.Stats
	if raw == nil {
		raw = data
	}

	return QueryStats{
		BytesProcessed: summary.TotalBytesProcessed,
		Streams:        streams,
		Chunks:         summary.TotalChunksMatched,
		Entries:        summary.TotalLinesProcessed,
		Raw:            raw,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}
	c.auth.Apply(req)
	return req, nil
}

func (c *Client) sendJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to loki failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("loki returned non-success status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode loki json response: %w", err)
	}
	return nil
}

func (c *Client) sendAPIData(ctx context.Context, method, path string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, method, path, params)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := c.sendJSON(req, &envelope); err != nil {
		return err
	}

	if envelope.Status == "success" {
		if envelope.Data == nil {
			return nil
		}
		return json.Unmarshal(envelope.Data, out)
	}

	errorType := envelope.ErrorType
	if errorType == "" {
		errorType = "unknown_error"
	}
	message := envelope.Error
	if message == "" {
		message = "loki returned an error response"
	}
	return fmt.Errorf("loki api error (%s): %s", errorType, message)
}

func (c *Client) sendAPIDataOrRaw(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, params)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.sendJSON(req, &raw); err != nil {
		return nil, err
	}

	var probe struct {
		Status    string `json:"status"`
		Data      json.RawMessage `json:"data"`
		Error     string `json:"error"`
		ErrorType string `json:"errorType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Status == "" {
		// Loki index stats may return a raw payload without the normal status/data envelope.
		return raw, nil
	}

	if probe.Status == "success" {
		if probe.Data == nil {
			return json.RawMessage("null"), nil
		}
		return probe.Data, nil
	}

	errorType := probe.ErrorType
	if errorType == "" {
		errorType = "unknown_error"
	}
	message := probe.Error
	if message == "" {
		message = "loki returned an error response"
	}
	return nil, fmt.Errorf("loki api error (%s): %s", errorType, message)
}

func (c *Client) getOptionalJSON(ctx context.Context, path string) json.RawMessage {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil
	}
	return raw
}

type readinessKind int

const (
	readinessReady readinessKind = iota
	readinessStatus
	readinessError
)

type readinessProbe struct {
	kind    readinessKind
	status  int
	errText string
}

func (c *Client) probeReadiness(ctx context.Context) readinessProbe {
	req, err := c.newRequest(ctx, http.MethodGet, "/ready", nil)
	if err != nil {
		return readinessProbe{kind: readinessError, errText: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return readinessProbe{kind: readinessError, errText: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return readinessProbe{kind: readinessReady}
	}
	return readinessProbe{kind: readinessStatus, status: resp.StatusCode}
}

func (c *Client) isAPIReachable(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/loki/api/v1/labels", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// evaluateHealth is the pure decision function behind CheckHealth,
// extracted so it can be tested without a network round trip.
func evaluateHealth(readiness readinessProbe, apiReachable bool) (bool, *string) {
	switch readiness.kind {
	case readinessReady:
		return true, nil
	case readinessStatus:
		statusText := fmt.Sprintf("%d %s", readiness.status, http.StatusText(readiness.status))
		if readiness.status == http.StatusNotFound && apiReachable {
			msg := fmt.Sprintf("loki /ready returned status %s; Loki API endpoints are reachable", statusText)
			return true, &msg
		}
		msg := fmt.Sprintf("loki returned status %s", statusText)
		return false, &msg
	default:
		msg := readiness.errText
		return false, &msg
	}
}

func appendTimeRange(params url.Values, start, end *time.Time) error {
	if start != nil {
		nanos, err := timestampNanos(*start)
		if err != nil {
			return err
		}
		params.Set("start", nanos)
	}
	if end != nil {
		nanos, err := timestampNanos(*end)
		if err != nil {
			return err
		}
		params.Set("end", nanos)
	}
	return nil
}

func timestampNanos(value time.Time) (string, error) {
	const maxNanos = int64(1) << 62
	sec := value.Unix()
	if sec > maxNanos/int64(time.Second) || sec < -maxNanos/int64(time.Second) {
		return "", fmt.Errorf("timestamp is out of range for nanoseconds")
	}
	return strconv.FormatInt(value.UnixNano(), 10), nil
}

func validateLabelName(label string) error {
	if label == "" {
		return fmt.Errorf("label must not be empty")
	}
	for _, r := range label {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == ':') {
			return fmt.Errorf("label contains unsupported characters: %s", label)
		}
	}
	return nil
}

package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rcourtman/loki-mcp-gateway/internal/config"
	"github.com/rcourtman/loki-mcp-gateway/internal/guardrail"
	"github.com/rcourtman/loki-mcp-gateway/internal/logql"
	"github.com/rcourtman/loki-mcp-gateway/internal/mcp"
	"github.com/rcourtman/loki-mcp-gateway/internal/timewindow"
)

// cacheRangeDuration resolves the effective query range for a cacheable
// tool call and reports whether a range applies at all. Discovery tools
// with no start/end supplied have no range (hasDuration=false) and are
// always cacheable regardless of the configured skip threshold.
// loki_compare_ranges reports the shorter of its two ranges, per §4.8.
func (d *Dispatcher) cacheRangeDuration(tool string, params map[string]interface{}) (time.Duration, bool, error) {
	if tool == "loki_compare_ranges" {
		baseline, compare, err := d.resolveCompareRanges(params)
		if err != nil {
			return 0, false, err
		}
		baselineDuration := baseline.end.Sub(baseline.start)
		compareDuration := compare.end.Sub(compare.start)
		if compareDuration < baselineDuration {
			return compareDuration, true, nil
		}
		return baselineDuration, true, nil
	}

	start, end, err := d.resolveRange(tool, params)
	if err != nil {
		return 0, false, err
	}
	if start == nil || end == nil {
		return 0, false, nil
	}
	return end.Sub(*start), true, nil
}

// resolveRange resolves the effective start/end instants used for both
// cache-duration checks and guardrail cost estimation. Discovery tools
// (list_labels, label_values, series, query_stats, detect_patterns) use
// parseOptionalRange: a missing end is not defaulted to now, so an
// unbounded call has no range at all. Query tools default a missing
// range to the standard 30-minute lookback window.
func (d *Dispatcher) resolveRange(tool string, params map[string]interface{}) (*time.Time, *time.Time, error) {
	now := time.Now().UTC()

	switch tool {
	case "loki_list_labels", "loki_series", "loki_label_values", "loki_query_stats", "loki_detect_patterns":
		return parseOptionalRange(stringPtr(params, "start"), stringPtr(params, "end"), d.loc, now)

	case "loki_query_logs", "loki_query_metrics", "loki_build_query":
		window, err := timewindow.ResolveRange(stringPtr(params, "start"), stringPtr(params, "end"), d.loc, now)
		if err != nil {
			return nil, nil, err
		}
		return &window.Start, &window.End, nil

	case "loki_tail":
		end := now
		start := end.Add(-30 * time.Minute)
		return &start, &end, nil

	case "loki_run_saved_query":
		var p mcp.RunSavedQueryParams
		if err := parseParams(params, &p); err != nil {
			return nil, nil, err
		}
		saved, ok := d.findSavedQuery(p.Name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown saved query: %s", p.Name)
		}
		startStr, endStr := p.Start, p.End
		if startStr == nil && saved.Range != "" {
			r := saved.Range
			startStr = &r
		}
		window, err := timewindow.ResolveRange(startStr, endStr, d.loc, now)
		if err != nil {
			return nil, nil, err
		}
		return &window.Start, &window.End, nil

	case "loki_compare_ranges":
		baseline, compare, err := d.resolveCompareRanges(params)
		if err != nil {
			return nil, nil, err
		}
		start, end := baseline.start, baseline.end
		if compare.start.Before(start) {
			start = compare.start
		}
		if compare.end.After(end) {
			end = compare.end
		}
		return &start, &end, nil

	default:
		return nil, nil, nil
	}
}

// timeRange is an ordered (start, end) instant pair.
type timeRange struct {
	start time.Time
	end   time.Time
}

// resolveCompareRanges parses and independently order-checks the
// baseline and compare ranges for loki_compare_ranges, matching
// ensure_ordered_range being applied to each range separately rather
// than to their union.
func (d *Dispatcher) resolveCompareRanges(params map[string]interface{}) (baseline, compare timeRange, err error) {
	var p mcp.CompareRangesParams
	if err := parseParams(params, &p); err != nil {
		return timeRange{}, timeRange{}, err
	}

	now := time.Now().UTC()

	baselineStart, err := timewindow.ParseTimeReference(p.BaselineStart, d.loc, now)
	if err != nil {
		return timeRange{}, timeRange{}, err
	}
	baselineEnd, err := timewindow.ParseTimeReference(p.BaselineEnd, d.loc, now)
	if err != nil {
		return timeRange{}, timeRange{}, err
	}
	if err := ensureOrderedRange(baselineStart, baselineEnd); err != nil {
		return timeRange{}, timeRange{}, err
	}

	compareStart, err := timewindow.ParseTimeReference(p.CompareStart, d.loc, now)
	if err != nil {
		return timeRange{}, timeRange{}, err
	}
	compareEnd, err := timewindow.ParseTimeReference(p.CompareEnd, d.loc, now)
	if err != nil {
		return timeRange{}, timeRange{}, err
	}
	if err := ensureOrderedRange(compareStart, compareEnd); err != nil {
		return timeRange{}, timeRange{}, err
	}

	return timeRange{baselineStart, baselineEnd}, timeRange{compareStart, compareEnd}, nil
}

func ensureOrderedRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("start time must be less than or equal to end time")
	}
	return nil
}

// parseOptionalRange resolves an optional start/end pair without
// defaulting a missing end to now: an unbounded discovery call stays
// unbounded. A present start is anchored to the resolved end (or now,
// if end is absent); both present and inverted is an error.
func parseOptionalRange(startStr, endStr *string, loc *time.Location, now time.Time) (*time.Time, *time.Time, error) {
	if startStr == nil && endStr == nil {
		return nil, nil, nil
	}

	var end *time.Time
	anchor := now
	if endStr != nil {
		resolved, err := timewindow.ParseTimeReference(*endStr, loc, now)
		if err != nil {
			return nil, nil, err
		}
		end = &resolved
		anchor = resolved
	}

	var start *time.Time
	if startStr != nil {
		resolved, err := timewindow.ParseTimeReference(*startStr, loc, anchor)
		if err != nil {
			return nil, nil, err
		}
		start = &resolved
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start time must be less than or equal to end time")
	}

	return start, end, nil
}

// buildGuardrailQuery renders the LogQL text a guardrailed tool call
// would actually execute, for cost estimation via QueryStats.
func (d *Dispatcher) buildGuardrailQuery(tool string, params map[string]interface{}) (string, error) {
	switch tool {
	case "loki_query_logs":
		var p mcp.QueryLogsParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		return logql.BuildQueryString(logql.BuildInput{
			Labels: p.Labels, StructuredMetadata: p.StructuredMetadata,
			LineFilter: p.LineFilter, LineFilterRegex: p.LineFilterRegex,
			Exclude: p.Exclude, JSONFields: p.JSONFields,
		}), nil

	case "loki_query_metrics":
		var p mcp.QueryMetricsParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		if err := logql.ValidateAggregation(p.Aggregation); err != nil {
			return "", err
		}
		selector := logql.BuildQueryString(logql.BuildInput{Labels: p.Labels, StructuredMetadata: p.StructuredMetadata, LineFilter: p.LineFilter})
		rng := ""
		if p.Range != nil {
			rng = *p.Range
		}
		return logql.WrapAggregation(p.Aggregation, selector, rng), nil

	case "loki_build_query":
		var p mcp.BuildQueryParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		selector := logql.BuildQueryString(logql.BuildInput{
			Labels: p.Labels, StructuredMetadata: p.StructuredMetadata,
			LineFilter: p.LineFilter, LineFilterRegex: p.LineFilterRegex,
			Exclude: p.Exclude, JSONFields: p.JSONFields,
		})
		if p.Aggregation == nil {
			return selector, nil
		}
		if err := logql.ValidateAggregation(*p.Aggregation); err != nil {
			return "", err
		}
		rng := ""
		if p.Range != nil {
			rng = *p.Range
		}
		return logql.WrapAggregation(*p.Aggregation, selector, rng), nil

	case "loki_tail":
		var p mcp.TailParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		return logql.SelectorFromLabels(p.Labels), nil

	case "loki_run_saved_query":
		var p mcp.RunSavedQueryParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		saved, ok := d.findSavedQuery(p.Name)
		if !ok {
			return "", fmt.Errorf("unknown saved query: %s", p.Name)
		}
		return saved.Query, nil

	case "loki_detect_patterns":
		var p mcp.DetectPatternsParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		return p.Query, nil

	case "loki_compare_ranges":
		var p mcp.CompareRangesParams
		if err := parseParams(params, &p); err != nil {
			return "", err
		}
		return p.Query, nil

	default:
		return "", nil
	}
}

// guardrailRanges returns the list of (start, end) ranges a guardrailed
// tool call must be evaluated against. Every tool but loki_compare_ranges
// has exactly one; loki_compare_ranges has two (baseline and compare),
// each independently order-checked and each evaluated against the same
// query text.
func (d *Dispatcher) guardrailRanges(tool string, params map[string]interface{}) ([]timeRange, error) {
	if tool == "loki_compare_ranges" {
		baseline, compare, err := d.resolveCompareRanges(params)
		if err != nil {
			return nil, err
		}
		return []timeRange{baseline, compare}, nil
	}

	start, end, err := d.resolveRange(tool, params)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}
	return []timeRange{{start: *start, end: *end}}, nil
}

// enforceGuardrails estimates the cost of a guardrailed tool call via
// QueryStats (falling back to a reconstructed runtime estimate when the
// index reports nothing useful) and rejects it if either configured
// ceiling is exceeded, evaluating every range the call touches (two for
// loki_compare_ranges, one otherwise) independently. A range shorter
// than guardrails.skip_stats_if_range_shorter_than skips its cost check
// entirely, since Loki's own index stats are unreliable over very short
// windows. The check fails closed: a stats response missing a stream or
// byte estimate rejects the query rather than treating the missing
// estimate as zero.
func (d *Dispatcher) enforceGuardrails(ctx context.Context, tool string, params map[string]interface{}) error {
	query, err := d.buildGuardrailQuery(tool, params)
	if err != nil {
		return err
	}
	if query == "" {
		return nil
	}

	ranges, err := d.guardrailRanges(tool, params)
	if err != nil {
		return err
	}

	for _, r := range ranges {
		if r.end.Sub(r.start) < d.guardrails.SkipStatsIfRangeShorterThan {
			continue
		}

		stats, err := d.client.QueryStats(ctx, query, &r.start, &r.end)
		if err != nil {
			return fmt.Errorf("failed to evaluate guardrail cost for query: %w", err)
		}
		if needsRuntimeStatsFallback(stats) {
			if fallback, ferr := d.client.QueryRuntimeStats(ctx, query, &r.start, &r.end); ferr == nil {
				stats = mergeStats(stats, fallback)
			}
		}

		if stats.Streams == nil {
			return fmt.Errorf("guardrail rejected query: missing stream estimates, narrow the query or use a shorter range")
		}
		streams := *stats.Streams

		// A range touching very few streams is cheap regardless of its
		// byte count, so it is admitted outright; the byte ceiling is
		// never even checked for it.
		if streams < d.guardrails.SkipStatsIfStreamsBelow {
			continue
		}

		if stats.BytesProcessed == nil {
			return fmt.Errorf("guardrail rejected query: missing byte estimates, narrow the query or use a shorter range")
		}
		bytesProcessed := *stats.BytesProcessed

		switch guardrail.Evaluate(bytesProcessed, streams, d.guardrails.MaxBytesScanned, d.guardrails.MaxStreams) {
		case guardrail.RejectBytes:
			return fmt.Errorf("guardrail rejected query: estimated %d bytes scanned exceeds configured limit", bytesProcessed)
		case guardrail.RejectStreams:
			return fmt.Errorf("guardrail rejected query: estimated %d streams exceeds configured limit", streams)
		}
	}

	return nil
}

func (d *Dispatcher) findSavedQuery(name string) (config.SavedQuery, bool) {
	for _, saved := range d.cfg.SavedQueries {
		if saved.Name == name {
			return saved, true
		}
	}
	return config.SavedQuery{}, false
}

// dispatch routes a tool call to its handler. Handlers return a plain
// value to be JSON-encoded by the caller, not an already-marshaled
// payload.
func (d *Dispatcher) dispatch(ctx context.Context, tool string, params map[string]interface{}) (interface{}, error) {
	switch tool {
	case "loki_describe_schema":
		return d.describeSchema(), nil
	case "loki_list_labels":
		return d.listLabels(ctx, params)
	case "loki_label_values":
		return d.labelValues(ctx, params)
	case "loki_series":
		return d.series(ctx, params)
	case "loki_query_logs":
		return d.queryLogs(ctx, params)
	case "loki_query_metrics":
		return d.queryMetrics(ctx, params)
	case "loki_build_query":
		return d.buildQuery(ctx, params)
	case "loki_tail":
		return d.tail(ctx, params)
	case "loki_run_saved_query":
		return d.runSavedQuery(ctx, params)
	case "loki_query_stats":
		return d.queryStats(ctx, params)
	case "loki_detect_patterns":
		return d.detectPatterns(ctx, params)
	case "loki_compare_ranges":
		return d.compareRanges(ctx, params)
	case "loki_explain_query":
		return d.explainQuery(ctx, params)
	case "loki_suggest_metric_rule":
		return d.suggestMetricRule(ctx, params)
	case "loki_check_health":
		return d.checkHealth(ctx)
	default:
		return nil, fmt.Errorf("unknown tool: %s", tool)
	}
}

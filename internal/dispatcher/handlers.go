package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcourtman/loki-mcp-gateway/internal/backend"
	"github.com/rcourtman/loki-mcp-gateway/internal/logql"
	"github.com/rcourtman/loki-mcp-gateway/internal/mcp"
	"github.com/rcourtman/loki-mcp-gateway/internal/shaper"
	"github.com/rcourtman/loki-mcp-gateway/internal/timewindow"
)

func (d *Dispatcher) describeSchema() map[string]interface{} {
	savedQueries := make([]map[string]interface{}, 0, len(d.cfg.SavedQueries))
	for _, q := range d.cfg.SavedQueries {
		savedQueries = append(savedQueries, map[string]interface{}{
			"name": q.Name, "description": q.Description, "query": q.Query, "range": q.Range,
		})
	}
	labels := make([]map[string]interface{}, 0, len(d.cfg.Labels))
	for _, l := range d.cfg.Labels {
		labels = append(labels, map[string]interface{}{
			"name": l.Name, "description": l.Description, "common_values": l.CommonValues,
		})
	}
	metadata := make([]map[string]interface{}, 0, len(d.cfg.StructuredMetadata))
	for _, m := range d.cfg.StructuredMetadata {
		metadata = append(metadata, map[string]interface{}{
			"name": m.Name, "description": m.Description, "common_values": m.CommonValues,
		})
	}
	return map[string]interface{}{
		"labels":              labels,
		"structured_metadata": metadata,
		"saved_queries":       savedQueries,
	}
}

func (d *Dispatcher) listLabels(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	start, end, err := parseOptionalRange(stringPtr(params, "start"), stringPtr(params, "end"), d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, err := d.client.Labels(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"labels": labels}, nil
}

func (d *Dispatcher) labelValues(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.LabelValuesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	start, end, err := parseOptionalRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	values, err := d.client.LabelValues(ctx, p.Label, start, end, p.Query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"label": p.Label, "values": values}, nil
}

func (d *Dispatcher) series(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.SeriesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	start, end, err := parseOptionalRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	series, err := d.client.Series(ctx, p.Match, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"series": series}, nil
}

func (d *Dispatcher) queryLogs(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.QueryLogsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	query := logql.BuildQueryString(logql.BuildInput{
		Labels: p.Labels, StructuredMetadata: p.StructuredMetadata,
		LineFilter: p.LineFilter, LineFilterRegex: p.LineFilterRegex,
		Exclude: p.Exclude, JSONFields: p.JSONFields,
	})

	window, err := timewindow.ResolveRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var limit *uint32
	if p.Limit != nil && *p.Limit > 0 {
		v := uint32(*p.Limit)
		limit = &v
	}

	raw, err := d.client.QueryLogs(ctx, query, &window.Start, &window.End, limit, p.Direction)
	if err != nil {
		return nil, err
	}

	mode := shaper.ModeSmart
	if p.ResponseMode != nil {
		mode = shaper.Mode(*p.ResponseMode)
	}
	appliedMode, shaped := shaper.FormatLogResult(mode, raw)
	shaped["query"] = query
	shaped["applied_mode"] = string(appliedMode)
	return shaped, nil
}

func (d *Dispatcher) queryMetrics(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.QueryMetricsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := logql.ValidateAggregation(p.Aggregation); err != nil {
		return nil, err
	}

	selector := logql.BuildQueryString(logql.BuildInput{Labels: p.Labels, StructuredMetadata: p.StructuredMetadata, LineFilter: p.LineFilter})
	rng := ""
	if p.Range != nil {
		rng = *p.Range
	}
	query := logql.WrapAggregation(p.Aggregation, selector, rng)

	window, err := timewindow.ResolveRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	raw, err := d.client.QueryMetrics(ctx, query, &window.Start, &window.End, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"query": query, "result": raw}, nil
}

func (d *Dispatcher) buildQuery(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.BuildQueryParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	selector := logql.BuildQueryString(logql.BuildInput{
		Labels: p.Labels, StructuredMetadata: p.StructuredMetadata,
		LineFilter: p.LineFilter, LineFilterRegex: p.LineFilterRegex,
		Exclude: p.Exclude, JSONFields: p.JSONFields,
	})

	query := selector
	if p.Aggregation != nil {
		if err := logql.ValidateAggregation(*p.Aggregation); err != nil {
			return nil, err
		}
		rng := ""
		if p.Range != nil {
			rng = *p.Range
		}
		query = logql.WrapAggregation(*p.Aggregation, selector, rng)
	}

	window, err := timewindow.ResolveRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var limit *uint32
	if p.Limit != nil && *p.Limit > 0 {
		v := uint32(*p.Limit)
		limit = &v
	}

	raw, err := d.client.QueryLogs(ctx, query, &window.Start, &window.End, limit, nil)
	if err != nil {
		return nil, err
	}

	mode := shaper.ModeSmart
	if p.ResponseMode != nil {
		mode = shaper.Mode(*p.ResponseMode)
	}
	appliedMode, shaped := shaper.FormatLogResult(mode, raw)
	shaped["query"] = query
	shaped["applied_mode"] = string(appliedMode)
	return shaped, nil
}

func (d *Dispatcher) tail(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.TailParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Labels) == 0 {
		return nil, fmt.Errorf("labels must not be empty")
	}

	query := logql.SelectorFromLabels(p.Labels)
	end := time.Now().UTC()
	start := end.Add(-30 * time.Minute)

	limit := uint32(50)
	if p.Lines != nil && *p.Lines > 0 {
		limit = uint32(*p.Lines)
	}
	backward := "backward"

	raw, err := d.client.QueryLogs(ctx, query, &start, &end, &limit, &backward)
	if err != nil {
		return nil, err
	}

	_, shaped := shaper.FormatLogResult(shaper.ModeRaw, raw)
	shaped["query"] = query
	return shaped, nil
}

func (d *Dispatcher) runSavedQuery(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.RunSavedQueryParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	saved, ok := d.findSavedQuery(p.Name)
	if !ok {
		return nil, fmt.Errorf("unknown saved query: %s", p.Name)
	}

	startStr := p.Start
	if startStr == nil && saved.Range != "" {
		r := saved.Range
		startStr = &r
	}

	window, err := timewindow.ResolveRange(startStr, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	limit := uint32(100)
	backward := "backward"
	raw, err := d.client.QueryLogs(ctx, saved.Query, &window.Start, &window.End, &limit, &backward)
	if err != nil {
		return nil, err
	}

	_, shaped := shaper.FormatLogResult(shaper.ModeSmart, raw)
	shaped["saved_query"] = saved.Name
	shaped["query"] = saved.Query
	return shaped, nil
}

func (d *Dispatcher) queryStats(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.QueryStatsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	start, end, err := parseOptionalRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	stats, err := d.client.QueryStats(ctx, p.Query, start, end)
	if err != nil {
		return nil, err
	}
	return statsPayload(stats), nil
}

func (d *Dispatcher) detectPatterns(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.DetectPatternsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	start, end, err := parseOptionalRange(p.Start, p.End, d.loc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	raw, err := d.client.DetectPatterns(ctx, p.Query, start, end, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"query": p.Query, "result": raw}, nil
}

// compareRanges counts matched log lines over a baseline and a compare
// range and reports the shift between them. It issues query_logs
// (limit 1000, direction backward) rather than query_stats, matching
// analysis.rs::compare_ranges rather than estimating via index stats.
func (d *Dispatcher) compareRanges(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.CompareRangesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	baseline, compare, err := d.resolveCompareRanges(params)
	if err != nil {
		return nil, err
	}

	limit := uint32(1000)
	backward := "backward"

	baselineRaw, err := d.client.QueryLogs(ctx, p.Query, &baseline.start, &baseline.end, &limit, &backward)
	if err != nil {
		return nil, err
	}
	compareRaw, err := d.client.QueryLogs(ctx, p.Query, &compare.start, &compare.end, &limit, &backward)
	if err != nil {
		return nil, err
	}

	baselineLines := uint64(len(shaper.FlattenLogEntries(baselineRaw)))
	compareLines := uint64(len(shaper.FlattenLogEntries(compareRaw)))

	return map[string]interface{}{
		"query": p.Query,
		"baseline": map[string]interface{}{
			"start": baseline.start, "end": baseline.end, "line_count": baselineLines,
		},
		"compare": map[string]interface{}{
			"start": compare.start, "end": compare.end, "line_count": compareLines,
		},
		"delta": map[string]interface{}{
			"line_count": int64(compareLines) - int64(baselineLines),
			"ratio":      lineRatio(compareLines, baselineLines),
		},
	}, nil
}

// lineRatio mirrors analysis.rs::ratio: zero whenever the baseline has
// no lines, rather than an undefined or infinite ratio.
func lineRatio(compare, baseline uint64) float64 {
	if baseline == 0 {
		return 0
	}
	return float64(compare) / float64(baseline)
}

// explainQuery has no original_source analog (no utility.rs was
// retrieved for this tool); it is freshly authored from the LogQL
// grammar the logql package already implements.
func (d *Dispatcher) explainQuery(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.ExplainQueryParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"query":           p.Query,
		"has_filters":     containsAny(p.Query, "|=", "!=", "|~", "!~"),
		"has_json":        strings.Contains(p.Query, "| json"),
		"is_metric_query": containsAny(p.Query, "count_over_time(", "rate(", "bytes_over_time(", "bytes_rate("),
	}, nil
}

// suggestMetricRule has no original_source analog either; it follows
// the conventional Prometheus recording/alerting rule shape.
func (d *Dispatcher) suggestMetricRule(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var p mcp.SuggestMetricRuleParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	ruleType := "recording"
	if p.RuleType != nil {
		ruleType = *p.RuleType
	}

	if ruleType == "alerting" {
		threshold := 0.0
		if p.AlertThreshold != nil {
			threshold = *p.AlertThreshold
		}
		forDuration := "5m"
		if p.AlertFor != nil {
			forDuration = *p.AlertFor
		}
		return map[string]interface{}{
			"rule_type": "alerting",
			"rule": map[string]interface{}{
				"alert": p.MetricName,
				"expr":  fmt.Sprintf("%s > %g", p.Query, threshold),
				"for":   forDuration,
				"labels": map[string]string{"severity": "warning"},
				"annotations": map[string]string{
					"summary": descriptionOr(p.Description, fmt.Sprintf("%s exceeded threshold", p.MetricName)),
				},
			},
		}, nil
	}

	return map[string]interface{}{
		"rule_type": "recording",
		"rule": map[string]interface{}{
			"record": p.MetricName,
			"expr":   p.Query,
		},
	}, nil
}

func (d *Dispatcher) checkHealth(ctx context.Context) (interface{}, error) {
	health, err := d.client.CheckHealth(ctx)
	if err != nil {
		return nil, err
	}
	return health, nil
}

func statsPayload(stats backend.QueryStats) map[string]interface{} {
	return map[string]interface{}{
		"bytes_processed": stats.BytesProcessed,
		"streams":         stats.Streams,
		"chunks":          stats.Chunks,
		"entries":         stats.Entries,
	}
}

func descriptionOr(description *string, fallback string) string {
	if description != nil && *description != "" {
		return *description
	}
	return fallback
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package mcp

// StartEndParams is an optional start/end pair, the only inputs of
// loki_list_labels. No handler decodes into it: listLabels reads the two
// keys directly.
type StartEndParams struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// LabelValuesParams are the inputs to loki_label_values.
type LabelValuesParams struct {
	Label string  `json:"label"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
	Query *string `json:"query,omitempty"`
}

// SeriesParams are the inputs to loki_series.
type SeriesParams struct {
	Match []string `json:"match"`
	Start *string  `json:"start,omitempty"`
	End   *string  `json:"end,omitempty"`
}

// QueryLogsParams are the inputs to loki_query_logs.
type QueryLogsParams struct {
	Labels             map[string]string `json:"labels,omitempty"`
	StructuredMetadata map[string]string `json:"structured_metadata,omitempty"`
	LineFilter         *string           `json:"line_filter,omitempty"`
	LineFilterRegex    *string           `json:"line_filter_regex,omitempty"`
	Exclude            *string           `json:"exclude,omitempty"`
	JSONFields         map[string]string `json:"json_fields,omitempty"`
	Start              *string           `json:"start,omitempty"`
	End                *string           `json:"end,omitempty"`
	Limit              *int              `json:"limit,omitempty"`
	Direction          *string           `json:"direction,omitempty"`
	ResponseMode       *string           `json:"response_mode,omitempty"`
}

// QueryMetricsParams are the inputs to loki_query_metrics.
type QueryMetricsParams struct {
	Labels             map[string]string `json:"labels,omitempty"`
	StructuredMetadata map[string]string `json:"structured_metadata,omitempty"`
	LineFilter         *string           `json:"line_filter,omitempty"`
	Aggregation        string            `json:"aggregation"`
	Range              *string           `json:"range,omitempty"`
	Start              *string           `json:"start,omitempty"`
	End                *string           `json:"end,omitempty"`
}

// BuildQueryParams are the inputs to loki_build_query.
type BuildQueryParams struct {
	Labels             map[string]string `json:"labels,omitempty"`
	StructuredMetadata map[string]string `json:"structured_metadata,omitempty"`
	LineFilter         *string           `json:"line_filter,omitempty"`
	LineFilterRegex    *string           `json:"line_filter_regex,omitempty"`
	Exclude            *string           `json:"exclude,omitempty"`
	JSONFields         map[string]string `json:"json_fields,omitempty"`
	Aggregation        *string           `json:"aggregation,omitempty"`
	Range              *string           `json:"range,omitempty"`
	Start              *string           `json:"start,omitempty"`
	End                *string           `json:"end,omitempty"`
	Limit              *int              `json:"limit,omitempty"`
	ResponseMode       *string           `json:"response_mode,omitempty"`
}

// TailParams are the inputs to loki_tail.
type TailParams struct {
	Labels map[string]string `json:"labels"`
	Lines  *int              `json:"lines,omitempty"`
}

// RunSavedQueryParams are the inputs to loki_run_saved_query.
type RunSavedQueryParams struct {
	Name  string  `json:"name"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// QueryStatsParams are the inputs to loki_query_stats.
type QueryStatsParams struct {
	Query string  `json:"query"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// DetectPatternsParams are the inputs to loki_detect_patterns.
type DetectPatternsParams struct {
	Query string  `json:"query"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// CompareRangesParams are the inputs to loki_compare_ranges. All four
// time references are required and are resolved directly, with no
// defaulting.
type CompareRangesParams struct {
	Query         string `json:"query"`
	BaselineStart string `json:"baseline_start"`
	BaselineEnd   string `json:"baseline_end"`
	CompareStart  string `json:"compare_start"`
	CompareEnd    string `json:"compare_end"`
}

// ExplainQueryParams are the inputs to loki_explain_query.
type ExplainQueryParams struct {
	Query string `json:"query"`
}

// SuggestMetricRuleParams are the inputs to loki_suggest_metric_rule.
type SuggestMetricRuleParams struct {
	Query          string   `json:"query"`
	MetricName     string   `json:"metric_name"`
	Description    *string  `json:"description,omitempty"`
	RuleType       *string  `json:"rule_type,omitempty"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty"`
	AlertFor       *string  `json:"alert_for,omitempty"`
}

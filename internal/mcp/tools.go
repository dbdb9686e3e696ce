package mcp

// ToolNames lists every tool this gateway serves, in registration order.
var ToolNames = []string{
	"loki_describe_schema",
	"loki_list_labels",
	"loki_label_values",
	"loki_series",
	"loki_query_logs",
	"loki_query_metrics",
	"loki_build_query",
	"loki_tail",
	"loki_run_saved_query",
	"loki_query_stats",
	"loki_detect_patterns",
	"loki_compare_ranges",
	"loki_explain_query",
	"loki_suggest_metric_rule",
	"loki_check_health",
}

var toolDescriptions = map[string]string{
	"loki_describe_schema":     "Return configured label, structured metadata, and saved-query schema briefing.",
	"loki_list_labels":         "List label names known to Loki, optionally scoped to a time range.",
	"loki_label_values":        "List values for a label, optionally scoped by time and query selector.",
	"loki_series":              "List matching series (unique label sets) for one or more LogQL matchers.",
	"loki_query_logs":          "Run a LogQL log query with optional time range and result controls.",
	"loki_query_metrics":       "Run a LogQL metric query and return numeric series data.",
	"loki_build_query":         "Build LogQL from structured filters, then execute and return results.",
	"loki_tail":                "Fetch the latest log lines for a required label set.",
	"loki_run_saved_query":     "Run a configured saved query by name with optional range override.",
	"loki_query_stats":         "Return Loki index query statistics for cost estimation.",
	"loki_detect_patterns":     "Detect recurring patterns from logs matching a query in a time range.",
	"loki_compare_ranges":      "Compare line volumes for a query across two explicit ranges.",
	"loki_explain_query":       "Report whether a LogQL query has line filters, a json stage, or a metric aggregation.",
	"loki_suggest_metric_rule": "Generate a recording or alerting rule from a LogQL query.",
	"loki_check_health":        "Check Loki readiness/build/ring health status through the configured endpoint.",
}

// BuildTools returns the registry of all 15 read-only tools this
// gateway serves, with their input schemas.
func BuildTools() []Tool {
	schemas := map[string]InputSchema{
		"loki_describe_schema": {Type: "object", Properties: map[string]PropertySchema{}},
		"loki_list_labels": {Type: "object", Properties: map[string]PropertySchema{
			"start": {Type: "string", Description: "Range start (RFC3339, relative duration, or symbolic reference)"},
			"end":   {Type: "string", Description: "Range end (RFC3339, relative duration, or symbolic reference)"},
		}},
		"loki_label_values": {Type: "object", Properties: map[string]PropertySchema{
			"label": {Type: "string", Description: "Label name to list values for"},
			"start": {Type: "string"},
			"end":   {Type: "string"},
			"query": {Type: "string", Description: "Optional LogQL selector to scope values"},
		}, Required: []string{"label"}},
		"loki_series": {Type: "object", Properties: map[string]PropertySchema{
			"match": {Type: "array", Description: "One or more LogQL series matchers"},
			"start": {Type: "string"},
			"end":   {Type: "string"},
		}, Required: []string{"match"}},
		"loki_query_logs": {Type: "object", Properties: map[string]PropertySchema{
			"labels":             {Type: "object", Description: "Label selector as key/value pairs"},
			"structured_metadata": {Type: "object"},
			"line_filter":        {Type: "string"},
			"line_filter_regex":  {Type: "string"},
			"exclude":            {Type: "string"},
			"json_fields":        {Type: "object"},
			"start":              {Type: "string"},
			"end":                {Type: "string"},
			"limit":              {Type: "integer"},
			"direction":          {Type: "string", Enum: []string{"forward", "backward"}},
			"response_mode":      {Type: "string", Enum: []string{"raw", "truncated", "summary", "smart"}},
		}},
		"loki_query_metrics": {Type: "object", Properties: map[string]PropertySchema{
			"labels":              {Type: "object"},
			"structured_metadata": {Type: "object"},
			"line_filter":         {Type: "string"},
			"aggregation":         {Type: "string", Enum: []string{"count_over_time", "rate", "bytes_over_time", "bytes_rate"}},
			"range":               {Type: "string", Description: "Range-vector window, e.g. 5m"},
			"start":               {Type: "string"},
			"end":                 {Type: "string"},
		}, Required: []string{"aggregation"}},
		"loki_build_query": {Type: "object", Properties: map[string]PropertySchema{
			"labels":              {Type: "object"},
			"structured_metadata": {Type: "object"},
			"line_filter":         {Type: "string"},
			"line_filter_regex":   {Type: "string"},
			"exclude":             {Type: "string"},
			"json_fields":         {Type: "object"},
			"aggregation":         {Type: "string"},
			"range":               {Type: "string"},
			"start":               {Type: "string"},
			"end":                 {Type: "string"},
			"limit":               {Type: "integer"},
			"response_mode":       {Type: "string"},
		}},
		"loki_tail": {Type: "object", Properties: map[string]PropertySchema{
			"labels": {Type: "object"},
			"lines":  {Type: "integer", Default: 50},
		}, Required: []string{"labels"}},
		"loki_run_saved_query": {Type: "object", Properties: map[string]PropertySchema{
			"name":  {Type: "string"},
			"start": {Type: "string"},
			"end":   {Type: "string"},
		}, Required: []string{"name"}},
		"loki_query_stats": {Type: "object", Properties: map[string]PropertySchema{
			"query": {Type: "string"},
			"start": {Type: "string"},
			"end":   {Type: "string"},
		}, Required: []string{"query"}},
		"loki_detect_patterns": {Type: "object", Properties: map[string]PropertySchema{
			"query": {Type: "string"},
			"start": {Type: "string"},
			"end":   {Type: "string"},
		}, Required: []string{"query"}},
		"loki_compare_ranges": {Type: "object", Properties: map[string]PropertySchema{
			"query":          {Type: "string"},
			"baseline_start": {Type: "string"},
			"baseline_end":   {Type: "string"},
			"compare_start":  {Type: "string"},
			"compare_end":    {Type: "string"},
		}, Required: []string{"query", "baseline_start", "baseline_end", "compare_start", "compare_end"}},
		"loki_explain_query": {Type: "object", Properties: map[string]PropertySchema{
			"query": {Type: "string"},
		}, Required: []string{"query"}},
		"loki_suggest_metric_rule": {Type: "object", Properties: map[string]PropertySchema{
			"query":           {Type: "string"},
			"metric_name":     {Type: "string"},
			"description":     {Type: "string"},
			"rule_type":       {Type: "string", Enum: []string{"recording", "alerting"}},
			"alert_threshold": {Type: "number"},
			"alert_for":       {Type: "string"},
		}, Required: []string{"query", "metric_name"}},
		"loki_check_health": {Type: "object", Properties: map[string]PropertySchema{}},
	}

	tools := make([]Tool, 0, len(ToolNames))
	for _, name := range ToolNames {
		tools = append(tools, Tool{
			Name:        name,
			Description: toolDescriptions[name],
			InputSchema: schemas[name],
			ReadOnly:    true,
			Idempotent:  true,
		})
	}
	return tools
}

// Package logql builds LogQL query strings from structured tool
// arguments: label selectors, structured-metadata filters, line filters,
// JSON field extraction, and range-aggregation wrapping.
package logql

import (
	"fmt"
	"sort"
	"strings"
)

// BuildInput carries the structured pieces of a query to assemble, in the
// same shape as the loki_build_query tool's arguments.
type BuildInput struct {
	Labels             map[string]string
	StructuredMetadata map[string]string
	LineFilter         *string
	LineFilterRegex    *string
	Exclude            *string
	JSONFields         map[string]string
}

// BuildQueryString assembles a LogQL query from the given pieces, in a
// fixed stage order: label selector, structured-metadata filters, line
// filter, line filter regex, exclusion, then (if json_fields is
// non-empty) a "| json" stage followed by per-field filters.
func BuildQueryString(input BuildInput) string {
	parts := []string{SelectorFromLabels(input.Labels)}

	for _, field := range sortedKeys(input.StructuredMetadata) {
		parts = append(parts, fmt.Sprintf("| %s=\"%s\"", field, EscapeValue(input.StructuredMetadata[field])))
	}

	if input.LineFilter != nil {
		parts = append(parts, fmt.Sprintf("|= \"%s\"", EscapeValue(*input.LineFilter)))
	}
	if input.LineFilterRegex != nil {
		parts = append(parts, fmt.Sprintf("|~ \"%s\"", EscapeValue(*input.LineFilterRegex)))
	}
	if input.Exclude != nil {
		parts = append(parts, fmt.Sprintf("!= \"%s\"", EscapeValue(*input.Exclude)))
	}

	if len(input.JSONFields) > 0 {
		parts = append(parts, "| json")
		for _, field := range sortedKeys(input.JSONFields) {
			parts = append(parts, fmt.Sprintf("| %s=\"%s\"", field, EscapeValue(input.JSONFields[field])))
		}
	}

	return strings.Join(parts, " ")
}

// SelectorFromLabels renders a sorted LogQL stream selector, "{}" when
// labels is empty.
func SelectorFromLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "{}"
	}

	pairs := make([]string, 0, len(labels))
	for _, key := range sortedKeys(labels) {
		pairs = append(pairs, fmt.Sprintf("%s=\"%s\"", key, EscapeValue(labels[key])))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

var allowedAggregations = map[string]bool{
	"count_over_time": true,
	"rate":            true,
	"bytes_over_time": true,
	"bytes_rate":      true,
}

// ValidateAggregation rejects anything outside the 4 supported range
// aggregation functions.
func ValidateAggregation(aggregation string) error {
	if allowedAggregations[aggregation] {
		return nil
	}
	return fmt.Errorf("unsupported aggregation: %s. expected one of count_over_time, rate, bytes_over_time, bytes_rate", aggregation)
}

// WrapAggregation wraps a query as "{agg}({query}[{range}])", defaulting
// range to "5m" when empty.
func WrapAggregation(aggregation, query, rng string) string {
	if rng == "" {
		rng = "5m"
	}
	return fmt.Sprintf("%s(%s[%s])", aggregation, query, rng)
}

// EscapeValue escapes a label/filter value for embedding in a LogQL
// double-quoted string literal: backslashes first, then quotes.
func EscapeValue(input string) string {
	escaped := strings.ReplaceAll(input, `\`, `\\`)
	return strings.ReplaceAll(escaped, `"`, `\"`)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package logql

import "testing"

func strp(s string) *string { return &s }

func TestSelectorFromLabelsEmpty(t *testing.T) {
	if got := SelectorFromLabels(nil); got != "{}" {
		t.Fatalf("got %q, want {}", got)
	}
}

func TestSelectorFromLabelsSorted(t *testing.T) {
	got := SelectorFromLabels(map[string]string{"b": "2", "a": "1"})
	want := `{a="1",b="2"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildQueryStringFullPipeline(t *testing.T) {
	input := BuildInput{
		Labels:             map[string]string{"app": "checkout"},
		StructuredMetadata: map[string]string{"trace_id": "abc"},
		LineFilter:         strp("error"),
		LineFilterRegex:    strp("failed.*"),
		Exclude:            strp("debug"),
		JSONFields:         map[string]string{"status": "500"},
	}
	got := BuildQueryString(input)
	want := `{app="checkout"} | trace_id="abc" |= "error" |~ "failed.*" != "debug" | json | status="500"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapeValue(t *testing.T) {
	got := EscapeValue(`back\slash "quote"`)
	want := `back\\slash \"quote\"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestValidateAggregation(t *testing.T) {
	for _, ok := range []string{"count_over_time", "rate", "bytes_over_time", "bytes_rate"} {
		if err := ValidateAggregation(ok); err != nil {
			t.Fatalf("%s should be valid: %v", ok, err)
		}
	}
	if err := ValidateAggregation("sum_over_time"); err == nil {
		t.Fatal("expected error for unsupported aggregation")
	}
}

func TestWrapAggregationDefaultsRange(t *testing.T) {
	got := WrapAggregation("rate", "{app=\"x\"}", "")
	want := `rate({app="x"}[5m])`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

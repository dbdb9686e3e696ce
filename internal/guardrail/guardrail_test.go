package guardrail

import "testing"

func u64(v uint64) *uint64 { return &v }

func TestEvaluateRejectsOnBytesLimit(t *testing.T) {
	got := Evaluate(100, 10, u64(50), u64(100))
	if got != RejectBytes {
		t.Fatalf("got %v, want RejectBytes", got)
	}
}

func TestEvaluateRejectsOnStreamLimit(t *testing.T) {
	got := Evaluate(100, 101, u64(200), u64(100))
	if got != RejectStreams {
		t.Fatalf("got %v, want RejectStreams", got)
	}
}

func TestEvaluateAllowsWithinLimits(t *testing.T) {
	got := Evaluate(10, 5, u64(100), u64(100))
	if got != Allow {
		t.Fatalf("got %v, want Allow", got)
	}
}

func TestEvaluateUnboundedWhenLimitNilOrZero(t *testing.T) {
	if got := Evaluate(1_000_000, 1_000, nil, nil); got != Allow {
		t.Fatalf("got %v, want Allow for nil limits", got)
	}
	zero := uint64(0)
	if got := Evaluate(1_000_000, 1_000, &zero, &zero); got != Allow {
		t.Fatalf("got %v, want Allow for zero limits", got)
	}
}

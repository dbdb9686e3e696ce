package timewindow

import (
	"testing"
	"time"
)

func TestDefaultWindowIsThirtyMinutes(t *testing.T) {
	end := time.Now().UTC()
	w := Default(end)
	if !w.End.Equal(end) {
		t.Fatalf("End = %v, want %v", w.End, end)
	}
	if w.End.Sub(w.Start) != 30*time.Minute {
		t.Fatalf("window = %v, want 30m", w.End.Sub(w.Start))
	}
}

func TestParseRelativeDurationUnits(t *testing.T) {
	got, err := ParseRelativeDuration("5m")
	if err != nil || got != 5*time.Minute {
		t.Fatalf("5m => %v, %v", got, err)
	}
	got, err = ParseRelativeDuration("250ms")
	if err != nil || got != 250*time.Millisecond {
		t.Fatalf("250ms => %v, %v", got, err)
	}
}

func TestParseRelativeDurationRejectsNonPositive(t *testing.T) {
	if _, err := ParseRelativeDuration("0m"); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := ParseRelativeDuration("-5m"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestParseStdDurationUnits(t *testing.T) {
	got, err := ParseStdDuration("30s")
	if err != nil || got != 30*time.Second {
		t.Fatalf("30s => %v, %v", got, err)
	}
	got, err = ParseStdDuration("2m")
	if err != nil || got != 2*time.Minute {
		t.Fatalf("2m => %v, %v", got, err)
	}
}

func TestParsesSinceTimeReference(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 2, 18, 20, 0, 0, 0, time.UTC)
	got, err := ParseTimeReference("since 2pm", loc, now)
	if err != nil {
		t.Fatalf("ParseTimeReference: %v", err)
	}
	want := time.Date(2026, 2, 18, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolvesDefaultWindowWhenMissing(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	w, err := ResolveRange(nil, nil, loc, now)
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	if !w.End.Equal(now) {
		t.Fatalf("End = %v, want %v", w.End, now)
	}
	if w.End.Sub(w.Start) != 30*time.Minute {
		t.Fatalf("window = %v, want 30m", w.End.Sub(w.Start))
	}
}

func TestRejectsInvertedRanges(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	start := "2026-02-18T13:00:00Z"
	end := "2026-02-18T12:00:00Z"
	_, err = ResolveRange(&start, &end, loc, now)
	if err == nil {
		t.Fatal("expected error for inverted range")
	}
	if got := err.Error(); got != "start time must be less than or equal to end time" {
		t.Fatalf("unexpected message: %s", got)
	}
}

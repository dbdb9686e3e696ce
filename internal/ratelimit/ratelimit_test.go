package ratelimit

import "testing"

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	if New(0, 10) != nil {
		t.Fatal("expected nil limiter for rps<=0")
	}
	if New(10, 0) != nil {
		t.Fatal("expected nil limiter for burst==0")
	}
}

func TestCheckEnforcesLimitPerToolIdentityKey(t *testing.T) {
	l := New(1, 1)

	if err := l.Check("loki_query_logs", "alice", ""); err != nil {
		t.Fatalf("expected first call to succeed: %v", err)
	}
	if err := l.Check("loki_query_logs", "alice", ""); err == nil {
		t.Fatal("expected second call to be rate limited")
	}
}

func TestCheckGivesIndependentBucketsPerKey(t *testing.T) {
	l := New(1, 1)

	if err := l.Check("loki_query_logs", "alice", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Check("loki_query_logs", "bob", ""); err != nil {
		t.Fatalf("expected independent bucket for different identity: %v", err)
	}
	if err := l.Check("loki_tail", "alice", ""); err != nil {
		t.Fatalf("expected independent bucket for different tool: %v", err)
	}
	if err := l.Check("loki_query_logs", "alice", "tenant-a"); err != nil {
		t.Fatalf("expected independent bucket for different tenant: %v", err)
	}
}

func TestCheckOnNilLimiterAlwaysAllows(t *testing.T) {
	var l *Limiter
	if err := l.Check("tool", "id", ""); err != nil {
		t.Fatalf("expected nil limiter to allow everything: %v", err)
	}
}

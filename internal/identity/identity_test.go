package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newReq() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/mcp", nil)
}

func TestResolvePrefersConfiguredHeader(t *testing.T) {
	req := newReq()
	req.Header.Set("X-User", "alice")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.RemoteAddr = "192.168.1.1:1234"

	if got := Resolve(req, "X-User"); got != "alice" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveFallsBackToForwardedFor(t *testing.T) {
	req := newReq()
	req.Header.Set("X-Forwarded-For", " 10.0.0.1 , 10.0.0.2")
	req.RemoteAddr = "192.168.1.1:1234"

	if got := Resolve(req, ""); got != "10.0.0.1" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveFallsBackToPeerAddr(t *testing.T) {
	req := newReq()
	req.RemoteAddr = "192.168.1.1:1234"

	if got := Resolve(req, ""); got != "192.168.1.1" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveFallsBackToUnknown(t *testing.T) {
	req := newReq()
	req.RemoteAddr = ""

	if got := Resolve(req, ""); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestHashIsStableAndSixteenHexChars(t *testing.T) {
	h1 := Hash("alice")
	h2 := Hash("alice")
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%q)", len(h1), h1)
	}
	if Hash("bob") == h1 {
		t.Fatal("expected different identities to hash differently")
	}
}

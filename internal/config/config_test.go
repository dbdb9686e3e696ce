package config

import "testing"

func TestDefaultsHaveExpectedValues(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Listen != "0.0.0.0:8080" {
		t.Fatalf("got %q", cfg.Server.Listen)
	}
	if cfg.Server.LogLevel != "info" {
		t.Fatalf("got %q", cfg.Server.LogLevel)
	}
	if cfg.Backend.Timeout != "30s" {
		t.Fatalf("got %q", cfg.Backend.Timeout)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("LOKI_MCP_LISTEN", "127.0.0.1:9090")
	t.Setenv("LOKI_MCP_LOKI_URL", "https://loki.example:3100")
	t.Setenv("LOKI_MCP_RATE_LIMIT_RPS", "25.5")

	cfg, err := Load("", Flags{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:9090" {
		t.Fatalf("got %q", cfg.Server.Listen)
	}
	if cfg.Backend.URL != "https://loki.example:3100" {
		t.Fatalf("got %q", cfg.Backend.URL)
	}
	if cfg.RateLimit.RPS != 25.5 {
		t.Fatalf("got %v", cfg.RateLimit.RPS)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("LOKI_MCP_LISTEN", "127.0.0.1:9090")
	listen := "0.0.0.0:7070"

	cfg, err := Load("", Flags{Listen: &listen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:7070" {
		t.Fatalf("got %q", cfg.Server.Listen)
	}
}

func TestValidateRejectsInvalidAuthCombination(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.AuthType = "basic"

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for missing basic auth credentials")
	}
}

func TestValidateRejectsZeroCacheMaxEntries(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.MaxEntries = 0

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for zero cache.max_entries")
	}
}

func TestValidateRejectsBadListenAddress(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Listen = "not-a-host-port"

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for invalid listen address")
	}
}

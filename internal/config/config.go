// Package config loads and validates the gateway's configuration from
// layered sources: built-in defaults, an optional TOML file, environment
// variables prefixed with LOKI_MCP_, and command-line flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rcourtman/loki-mcp-gateway/internal/bytesize"
	"github.com/rcourtman/loki-mcp-gateway/internal/timewindow"
)

// Config is the fully-resolved gateway configuration.
type Config struct {
	Server             ServerConfig        `toml:"server"`
	Backend            BackendConfig       `toml:"loki"`
	Cache              CacheConfig         `toml:"cache"`
	Guardrails         GuardrailsConfig    `toml:"guardrails"`
	RateLimit          RateLimitConfig     `toml:"rate_limit"`
	Metrics            MetricsConfig       `toml:"metrics"`
	RecentActions      RecentActionsConfig `toml:"recent_actions"`
	Labels             []SchemaField       `toml:"labels"`
	StructuredMetadata []SchemaField       `toml:"structured_metadata"`
	SavedQueries       []SavedQuery        `toml:"saved_queries"`
}

type ServerConfig struct {
	Listen         string `toml:"listen"`
	Timezone       string `toml:"timezone"`
	LogLevel       string `toml:"log_level"`
	IdentityHeader string `toml:"identity_header"`
}

type BackendConfig struct {
	URL      string `toml:"url"`
	TenantID string `toml:"tenant_id"`
	AuthType string `toml:"auth_type"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Token    string `toml:"token"`
	CACert   string `toml:"ca_cert"`
	Timeout  string `toml:"timeout"`
}

type CacheConfig struct {
	Enabled                bool   `toml:"enabled"`
	TTL                    string `toml:"ttl"`
	SkipIfRangeShorterThan string `toml:"skip_if_range_shorter_than"`
	MaxEntries             uint64 `toml:"max_entries"`
}

type GuardrailsConfig struct {
	MaxBytesScanned             string `toml:"max_bytes_scanned"`
	MaxStreams                  uint64 `toml:"max_streams"`
	SkipStatsIfStreamsBelow     uint64 `toml:"skip_stats_if_streams_below"`
	SkipStatsIfRangeShorterThan string `toml:"skip_stats_if_range_shorter_than"`
}

type RateLimitConfig struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   uint32  `toml:"burst"`
}

type MetricsConfig struct {
	Prefix string `toml:"prefix"`
}

type RecentActionsConfig struct {
	Enabled        bool   `toml:"enabled"`
	MaxEntries     uint64 `toml:"max_entries"`
	TTL            string `toml:"ttl"`
	StoreQueryText bool   `toml:"store_query_text"`
	StoreErrorText bool   `toml:"store_error_text"`
}

type SchemaField struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	CommonValues []string `toml:"common_values"`
}

type SavedQuery struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Query       string `toml:"query"`
	Range       string `toml:"range"`
}

// Defaults returns a Config populated with the gateway's built-in
// defaults, before any file/env/flag overlay is applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Listen:   "0.0.0.0:8080",
			Timezone: "America/New_York",
			LogLevel: "info",
		},
		Backend: BackendConfig{
			URL:      "http://127.0.0.1:3100",
			AuthType: "none",
			Timeout:  "30s",
		},
		Cache: CacheConfig{
			Enabled:                true,
			TTL:                    "60s",
			SkipIfRangeShorterThan: "60s",
			MaxEntries:             1000,
		},
		Guardrails: GuardrailsConfig{
			MaxBytesScanned:             "500MB",
			MaxStreams:                  5000,
			SkipStatsIfStreamsBelow:     50,
			SkipStatsIfRangeShorterThan: "15m",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     10.0,
			Burst:   30,
		},
		Metrics: MetricsConfig{
			Prefix: "loki_mcp",
		},
		RecentActions: RecentActionsConfig{
			Enabled:        false,
			MaxEntries:     500,
			TTL:            "30m",
			StoreQueryText: false,
			StoreErrorText: false,
		},
	}
}

// Flags mirrors the command-line overrides accepted by the gateway's
// CLI; a nil/zero-value pointer means "not set on the command line".
type Flags struct {
	Listen         *string
	Timezone       *string
	LogLevel       *string
	IdentityHeader *string

	BackendURL      *string
	BackendTenantID *string
	BackendAuthType *string
	BackendUsername *string
	BackendPassword *string
	BackendToken    *string
	BackendCACert   *string
	BackendTimeout  *string

	CacheEnabled                *bool
	CacheTTL                    *string
	CacheSkipIfRangeShorterThan *string
	CacheMaxEntries             *uint64

	GuardrailsMaxBytesScanned             *string
	GuardrailsMaxStreams                  *uint64
	GuardrailsSkipStatsIfStreamsBelow     *uint64
	GuardrailsSkipStatsIfRangeShorterThan *string

	RateLimitEnabled *bool
	RateLimitRPS     *float64
	RateLimitBurst   *uint32

	MetricsPrefix *string

	RecentActionsEnabled        *bool
	RecentActionsMaxEntries     *uint64
	RecentActionsTTL            *string
	RecentActionsStoreQueryText *bool
	RecentActionsStoreErrorText *bool
}

// Load resolves the final Config by layering, in increasing priority:
// built-in defaults, the TOML file at path (if it exists), environment
// variables prefixed LOKI_MCP_, and flags.
func Load(path string, flags Flags) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	applyFlags(&cfg, flags)

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Server.Listen = strings.TrimSpace(c.Server.Listen)
	c.Server.Timezone = strings.TrimSpace(c.Server.Timezone)
	c.Server.LogLevel = strings.TrimSpace(c.Server.LogLevel)
	c.Server.IdentityHeader = strings.TrimSpace(c.Server.IdentityHeader)

	c.Backend.URL = strings.TrimSpace(c.Backend.URL)
	c.Backend.AuthType = strings.ToLower(strings.TrimSpace(c.Backend.AuthType))
	c.Backend.Timeout = strings.TrimSpace(c.Backend.Timeout)
	c.Backend.TenantID = strings.TrimSpace(c.Backend.TenantID)
	c.Backend.Username = strings.TrimSpace(c.Backend.Username)
	c.Backend.Password = strings.TrimSpace(c.Backend.Password)
	c.Backend.Token = strings.TrimSpace(c.Backend.Token)
	c.Backend.CACert = strings.TrimSpace(c.Backend.CACert)

	c.Cache.TTL = strings.TrimSpace(c.Cache.TTL)
	c.Cache.SkipIfRangeShorterThan = strings.TrimSpace(c.Cache.SkipIfRangeShorterThan)

	c.Guardrails.MaxBytesScanned = strings.TrimSpace(c.Guardrails.MaxBytesScanned)
	c.Guardrails.SkipStatsIfRangeShorterThan = strings.TrimSpace(c.Guardrails.SkipStatsIfRangeShorterThan)

	c.Metrics.Prefix = strings.TrimSpace(c.Metrics.Prefix)
	c.RecentActions.TTL = strings.TrimSpace(c.RecentActions.TTL)
}

func (c *Config) validate() error {
	if err := ensureNonEmpty("server.listen", c.Server.Listen); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen must be host:port, got %s", c.Server.Listen)
	}

	if err := ensureNonEmpty("server.timezone", c.Server.Timezone); err != nil {
		return err
	}
	if _, err := timewindow.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid server.timezone: %s", c.Server.Timezone)
	}

	if err := ensureNonEmpty("server.log_level", c.Server.LogLevel); err != nil {
		return err
	}

	if err := ensureNonEmpty("loki.url", c.Backend.URL); err != nil {
		return err
	}
	if _, err := url.Parse(c.Backend.URL); err != nil {
		return fmt.Errorf("invalid loki.url: %s", c.Backend.URL)
	}

	switch c.Backend.AuthType {
	case "none":
	case "basic":
		if c.Backend.Username == "" {
			return fmt.Errorf("loki.username is required when loki.auth_type=basic")
		}
		if c.Backend.Password == "" {
			return fmt.Errorf("loki.password is required when loki.auth_type=basic")
		}
	case "bearer":
		if c.Backend.Token == "" {
			return fmt.Errorf("loki.token is required when loki.auth_type=bearer")
		}
	default:
		return fmt.Errorf("unsupported loki.auth_type: %s. expected one of none/basic/bearer", c.Backend.AuthType)
	}

	if _, err := timewindow.ParseStdDuration(c.Backend.Timeout); err != nil {
		return fmt.Errorf("invalid loki.timeout: %s", c.Backend.Timeout)
	}
	if _, err := timewindow.ParseStdDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache.ttl: %s", c.Cache.TTL)
	}
	if _, err := timewindow.ParseStdDuration(c.Cache.SkipIfRangeShorterThan); err != nil {
		return fmt.Errorf("invalid cache.skip_if_range_shorter_than: %s", c.Cache.SkipIfRangeShorterThan)
	}
	if _, err := timewindow.ParseStdDuration(c.Guardrails.SkipStatsIfRangeShorterThan); err != nil {
		return fmt.Errorf("invalid guardrails.skip_stats_if_range_shorter_than: %s", c.Guardrails.SkipStatsIfRangeShorterThan)
	}

	if _, err := bytesize.Parse(c.Guardrails.MaxBytesScanned); err != nil {
		return fmt.Errorf("invalid guardrails.max_bytes_scanned: %s", c.Guardrails.MaxBytesScanned)
	}

	if c.Cache.MaxEntries == 0 {
		return fmt.Errorf("cache.max_entries must be greater than zero")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate_limit.rps must be > 0 when rate limiting is enabled")
		}
		if c.RateLimit.Burst == 0 {
			return fmt.Errorf("rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}

	if err := ensureNonEmpty("metrics.prefix", c.Metrics.Prefix); err != nil {
		return err
	}

	if _, err := timewindow.ParseStdDuration(c.RecentActions.TTL); err != nil {
		return fmt.Errorf("invalid recent_actions.ttl: %s", c.RecentActions.TTL)
	}
	if c.RecentActions.MaxEntries == 0 {
		return fmt.Errorf("recent_actions.max_entries must be greater than zero")
	}

	return nil
}

func ensureNonEmpty(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Listen, "LOKI_MCP_LISTEN")
	setString(&cfg.Server.Timezone, "LOKI_MCP_TIMEZONE")
	setString(&cfg.Server.LogLevel, "LOKI_MCP_LOG_LEVEL")
	setString(&cfg.Server.IdentityHeader, "LOKI_MCP_IDENTITY_HEADER")

	setString(&cfg.Backend.URL, "LOKI_MCP_LOKI_URL")
	setString(&cfg.Backend.TenantID, "LOKI_MCP_LOKI_TENANT_ID")
	setString(&cfg.Backend.AuthType, "LOKI_MCP_LOKI_AUTH_TYPE")
	setString(&cfg.Backend.Username, "LOKI_MCP_LOKI_USERNAME")
	setString(&cfg.Backend.Password, "LOKI_MCP_LOKI_PASSWORD")
	setString(&cfg.Backend.Token, "LOKI_MCP_LOKI_TOKEN")
	setString(&cfg.Backend.CACert, "LOKI_MCP_LOKI_CA_CERT")
	setString(&cfg.Backend.Timeout, "LOKI_MCP_LOKI_TIMEOUT")

	setBool(&cfg.Cache.Enabled, "LOKI_MCP_CACHE_ENABLED")
	setString(&cfg.Cache.TTL, "LOKI_MCP_CACHE_TTL")
	setString(&cfg.Cache.SkipIfRangeShorterThan, "LOKI_MCP_CACHE_SKIP_IF_RANGE_SHORTER_THAN")
	setUint64(&cfg.Cache.MaxEntries, "LOKI_MCP_CACHE_MAX_ENTRIES")

	setString(&cfg.Guardrails.MaxBytesScanned, "LOKI_MCP_GUARDRAILS_MAX_BYTES_SCANNED")
	setUint64(&cfg.Guardrails.MaxStreams, "LOKI_MCP_GUARDRAILS_MAX_STREAMS")
	setUint64(&cfg.Guardrails.SkipStatsIfStreamsBelow, "LOKI_MCP_GUARDRAILS_SKIP_STATS_IF_STREAMS_BELOW")
	setString(&cfg.Guardrails.SkipStatsIfRangeShorterThan, "LOKI_MCP_GUARDRAILS_SKIP_STATS_IF_RANGE_SHORTER_THAN")

	setBool(&cfg.RateLimit.Enabled, "LOKI_MCP_RATE_LIMIT_ENABLED")
	setFloat64(&cfg.RateLimit.RPS, "LOKI_MCP_RATE_LIMIT_RPS")
	setUint32(&cfg.RateLimit.Burst, "LOKI_MCP_RATE_LIMIT_BURST")

	setString(&cfg.Metrics.Prefix, "LOKI_MCP_METRICS_PREFIX")

	setBool(&cfg.RecentActions.Enabled, "LOKI_MCP_RECENT_ACTIONS_ENABLED")
	setUint64(&cfg.RecentActions.MaxEntries, "LOKI_MCP_RECENT_ACTIONS_MAX_ENTRIES")
	setString(&cfg.RecentActions.TTL, "LOKI_MCP_RECENT_ACTIONS_TTL")
	setBool(&cfg.RecentActions.StoreQueryText, "LOKI_MCP_RECENT_ACTIONS_STORE_QUERY_TEXT")
	setBool(&cfg.RecentActions.StoreErrorText, "LOKI_MCP_RECENT_ACTIONS_STORE_ERROR_TEXT")
}

func applyFlags(cfg *Config, f Flags) {
	applyStringFlag(&cfg.Server.Listen, f.Listen)
	applyStringFlag(&cfg.Server.Timezone, f.Timezone)
	applyStringFlag(&cfg.Server.LogLevel, f.LogLevel)
	applyStringFlag(&cfg.Server.IdentityHeader, f.IdentityHeader)

	applyStringFlag(&cfg.Backend.URL, f.BackendURL)
	applyStringFlag(&cfg.Backend.TenantID, f.BackendTenantID)
	applyStringFlag(&cfg.Backend.AuthType, f.BackendAuthType)
	applyStringFlag(&cfg.Backend.Username, f.BackendUsername)
	applyStringFlag(&cfg.Backend.Password, f.BackendPassword)
	applyStringFlag(&cfg.Backend.Token, f.BackendToken)
	applyStringFlag(&cfg.Backend.CACert, f.BackendCACert)
	applyStringFlag(&cfg.Backend.Timeout, f.BackendTimeout)

	if f.CacheEnabled != nil {
		cfg.Cache.Enabled = *f.CacheEnabled
	}
	applyStringFlag(&cfg.Cache.TTL, f.CacheTTL)
	applyStringFlag(&cfg.Cache.SkipIfRangeShorterThan, f.CacheSkipIfRangeShorterThan)
	if f.CacheMaxEntries != nil {
		cfg.Cache.MaxEntries = *f.CacheMaxEntries
	}

	applyStringFlag(&cfg.Guardrails.MaxBytesScanned, f.GuardrailsMaxBytesScanned)
	if f.GuardrailsMaxStreams != nil {
		cfg.Guardrails.MaxStreams = *f.GuardrailsMaxStreams
	}
	if f.GuardrailsSkipStatsIfStreamsBelow != nil {
		cfg.Guardrails.SkipStatsIfStreamsBelow = *f.GuardrailsSkipStatsIfStreamsBelow
	}
	applyStringFlag(&cfg.Guardrails.SkipStatsIfRangeShorterThan, f.GuardrailsSkipStatsIfRangeShorterThan)

	if f.RateLimitEnabled != nil {
		cfg.RateLimit.Enabled = *f.RateLimitEnabled
	}
	if f.RateLimitRPS != nil {
		cfg.RateLimit.RPS = *f.RateLimitRPS
	}
	if f.RateLimitBurst != nil {
		cfg.RateLimit.Burst = *f.RateLimitBurst
	}

	applyStringFlag(&cfg.Metrics.Prefix, f.MetricsPrefix)

	if f.RecentActionsEnabled != nil {
		cfg.RecentActions.Enabled = *f.RecentActionsEnabled
	}
	if f.RecentActionsMaxEntries != nil {
		cfg.RecentActions.MaxEntries = *f.RecentActionsMaxEntries
	}
	applyStringFlag(&cfg.RecentActions.TTL, f.RecentActionsTTL)
	if f.RecentActionsStoreQueryText != nil {
		cfg.RecentActions.StoreQueryText = *f.RecentActionsStoreQueryText
	}
	if f.RecentActionsStoreErrorText != nil {
		cfg.RecentActions.StoreErrorText = *f.RecentActionsStoreErrorText
	}
}

func applyStringFlag(dst *string, value *string) {
	if value == nil {
		return
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return
	}
	*dst = trimmed
}

func setString(dst *string, key string) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return
	}
	*dst = trimmed
}

func setBool(dst *bool, key string) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return
	}
	*dst = parsed
}

func setUint64(dst *uint64, key string) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	*dst = parsed
}

func setUint32(dst *uint32, key string) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return
	}
	*dst = uint32(parsed)
}

func setFloat64(dst *float64, key string) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	*dst = parsed
}

func lookupTrimmed(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// Package config loads relaygate's runtime configuration from built-in
// defaults, an optional JSON file, and RELAYGATE_* environment overrides.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config is the top-level configuration for a gateway process.
type Config struct {
	// Listen is the address the WebSocket + HTTP introspection server binds.
	Listen string `json:"listen"`

	// Upstreams lists the blockchain RPC endpoints, in priority order. The
	// first entry is the pool's initial "current" endpoint.
	Upstreams []string `json:"upstreams"`

	// AllowedOrigins is the CORS allow-list for the HTTP surface and the
	// WebSocket upgrade's Origin check. "*" permits any origin.
	AllowedOrigins []string `json:"allowedOrigins"`

	// MaxConnections caps concurrently open client sessions.
	MaxConnections int `json:"maxConnections"`

	// RequestsPerMinute caps frames accepted per session in a sliding 60s
	// window.
	RequestsPerMinute int `json:"requestsPerMinute"`

	// WorkQueueSize bounds the dispatcher's inbound frame queue.
	WorkQueueSize int `json:"workQueueSize"`

	// PollInterval is the poll driver's fixed period.
	PollInterval time.Duration `json:"pollIntervalMs"`

	// HealthProbeInterval is the independent upstream health-probe period.
	HealthProbeInterval time.Duration `json:"healthProbeIntervalMs"`

	// HeadStateTTL is the cache TTL for the head-state singleton slot.
	HeadStateTTL time.Duration `json:"headStateTTLMs"`

	// WitnessTTL is the cache TTL for the active-witnesses singleton slot.
	// See SPEC_FULL.md §9 Open Question 3: either 60s or 300s is acceptable;
	// this implementation defaults to 300s.
	WitnessTTL time.Duration `json:"witnessTTLMs"`

	// BlockCacheTTL is the TTL for per-height bounded-map entries (headers,
	// full blocks, operations). Entries are immutable once stored (see §3
	// Invariant) so this TTL only governs when a fresh upstream read is
	// attempted again, not correctness.
	BlockCacheTTL time.Duration `json:"blockCacheTTLMs"`

	// BlockCacheSize bounds each per-height map (headers, blocks, ops).
	BlockCacheSize int `json:"blockCacheSize"`

	// RecoveryWindow is how long after an endpoint's last error it becomes
	// eligible again during failover selection (§4.1).
	RecoveryWindow time.Duration `json:"recoveryWindowMs"`

	// RetryAttempts and RetryBaseDelay configure the retrying caller (§4.2).
	RetryAttempts  int           `json:"retryAttempts"`
	RetryBaseDelay time.Duration `json:"retryBaseDelayMs"`

	// UpstreamTimeout bounds a single upstream call (§5).
	UpstreamTimeout time.Duration `json:"upstreamTimeoutMs"`

	// LogLevel and LogFormat configure pkg/log.
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// Default returns relaygate's built-in configuration.
func Default() Config {
	return Config{
		Listen:              ":8080",
		Upstreams:           []string{"http://127.0.0.1:8090/rpc"},
		AllowedOrigins:      []string{"*"},
		MaxConnections:      100,
		RequestsPerMinute:   2000,
		WorkQueueSize:       1000,
		PollInterval:        3 * time.Second,
		HealthProbeInterval: 30 * time.Second,
		HeadStateTTL:        3 * time.Second,
		WitnessTTL:          5 * time.Minute,
		BlockCacheTTL:       5 * time.Minute,
		BlockCacheSize:      512,
		RecoveryWindow:      60 * time.Second,
		RetryAttempts:       3,
		RetryBaseDelay:      1 * time.Second,
		UpstreamTimeout:     10 * time.Second,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// fileConfig mirrors Config but with millisecond durations as plain ints, so
// the JSON file format doesn't require callers to encode Go duration strings.
type fileConfig struct {
	Listen              string   `json:"listen"`
	Upstreams           []string `json:"upstreams"`
	AllowedOrigins      []string `json:"allowedOrigins"`
	MaxConnections      int      `json:"maxConnections"`
	RequestsPerMinute   int      `json:"requestsPerMinute"`
	WorkQueueSize       int      `json:"workQueueSize"`
	PollIntervalMs      int64    `json:"pollIntervalMs"`
	HealthProbeMs       int64    `json:"healthProbeIntervalMs"`
	HeadStateTTLMs      int64    `json:"headStateTTLMs"`
	WitnessTTLMs        int64    `json:"witnessTTLMs"`
	BlockCacheTTLMs     int64    `json:"blockCacheTTLMs"`
	BlockCacheSize      int      `json:"blockCacheSize"`
	RecoveryWindowMs    int64    `json:"recoveryWindowMs"`
	RetryAttempts       int      `json:"retryAttempts"`
	RetryBaseDelayMs    int64    `json:"retryBaseDelayMs"`
	UpstreamTimeoutMs   int64    `json:"upstreamTimeoutMs"`
	LogLevel            string   `json:"logLevel"`
	LogFormat           string   `json:"logFormat"`
}

// Load reads configuration overrides from a JSON file on top of Default. If
// path is empty, Load returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var fc fileConfig
	applyDefaults(&fc, cfg)
	if err := json.Unmarshal(b, &fc); err != nil {
		return Config{}, err
	}
	return fromFileConfig(fc), nil
}

func applyDefaults(fc *fileConfig, cfg Config) {
	fc.Listen = cfg.Listen
	fc.Upstreams = cfg.Upstreams
	fc.AllowedOrigins = cfg.AllowedOrigins
	fc.MaxConnections = cfg.MaxConnections
	fc.RequestsPerMinute = cfg.RequestsPerMinute
	fc.WorkQueueSize = cfg.WorkQueueSize
	fc.PollIntervalMs = cfg.PollInterval.Milliseconds()
	fc.HealthProbeMs = cfg.HealthProbeInterval.Milliseconds()
	fc.HeadStateTTLMs = cfg.HeadStateTTL.Milliseconds()
	fc.WitnessTTLMs = cfg.WitnessTTL.Milliseconds()
	fc.BlockCacheTTLMs = cfg.BlockCacheTTL.Milliseconds()
	fc.BlockCacheSize = cfg.BlockCacheSize
	fc.RecoveryWindowMs = cfg.RecoveryWindow.Milliseconds()
	fc.RetryAttempts = cfg.RetryAttempts
	fc.RetryBaseDelayMs = cfg.RetryBaseDelay.Milliseconds()
	fc.UpstreamTimeoutMs = cfg.UpstreamTimeout.Milliseconds()
	fc.LogLevel = cfg.LogLevel
	fc.LogFormat = cfg.LogFormat
}

func fromFileConfig(fc fileConfig) Config {
	return Config{
		Listen:              fc.Listen,
		Upstreams:           fc.Upstreams,
		AllowedOrigins:      fc.AllowedOrigins,
		MaxConnections:      fc.MaxConnections,
		RequestsPerMinute:   fc.RequestsPerMinute,
		WorkQueueSize:       fc.WorkQueueSize,
		PollInterval:        time.Duration(fc.PollIntervalMs) * time.Millisecond,
		HealthProbeInterval: time.Duration(fc.HealthProbeMs) * time.Millisecond,
		HeadStateTTL:        time.Duration(fc.HeadStateTTLMs) * time.Millisecond,
		WitnessTTL:          time.Duration(fc.WitnessTTLMs) * time.Millisecond,
		BlockCacheTTL:       time.Duration(fc.BlockCacheTTLMs) * time.Millisecond,
		BlockCacheSize:      fc.BlockCacheSize,
		RecoveryWindow:      time.Duration(fc.RecoveryWindowMs) * time.Millisecond,
		RetryAttempts:       fc.RetryAttempts,
		RetryBaseDelay:      time.Duration(fc.RetryBaseDelayMs) * time.Millisecond,
		UpstreamTimeout:     time.Duration(fc.UpstreamTimeoutMs) * time.Millisecond,
		LogLevel:            fc.LogLevel,
		LogFormat:           fc.LogFormat,
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays RELAYGATE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RELAYGATE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("RELAYGATE_UPSTREAMS"); v != "" {
		cfg.Upstreams = splitCSV(v)
	}
	if v := os.Getenv("RELAYGATE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := envInt("RELAYGATE_MAX_CONNECTIONS"); v != nil {
		cfg.MaxConnections = *v
	}
	if v := envInt("RELAYGATE_REQUESTS_PER_MINUTE"); v != nil {
		cfg.RequestsPerMinute = *v
	}
	if v := envInt("RELAYGATE_WORK_QUEUE_SIZE"); v != nil {
		cfg.WorkQueueSize = *v
	}
	if v := envDuration("RELAYGATE_POLL_INTERVAL_MS"); v != nil {
		cfg.PollInterval = *v
	}
	if v := envDuration("RELAYGATE_HEALTH_PROBE_INTERVAL_MS"); v != nil {
		cfg.HealthProbeInterval = *v
	}
	if v := envDuration("RELAYGATE_HEAD_STATE_TTL_MS"); v != nil {
		cfg.HeadStateTTL = *v
	}
	if v := envDuration("RELAYGATE_WITNESS_TTL_MS"); v != nil {
		cfg.WitnessTTL = *v
	}
	if v := envDuration("RELAYGATE_BLOCK_CACHE_TTL_MS"); v != nil {
		cfg.BlockCacheTTL = *v
	}
	if v := envInt("RELAYGATE_BLOCK_CACHE_SIZE"); v != nil {
		cfg.BlockCacheSize = *v
	}
	if v := envDuration("RELAYGATE_RECOVERY_WINDOW_MS"); v != nil {
		cfg.RecoveryWindow = *v
	}
	if v := envInt("RELAYGATE_RETRY_ATTEMPTS"); v != nil {
		cfg.RetryAttempts = *v
	}
	if v := envDuration("RELAYGATE_RETRY_BASE_DELAY_MS"); v != nil {
		cfg.RetryBaseDelay = *v
	}
	if v := envDuration("RELAYGATE_UPSTREAM_TIMEOUT_MS"); v != nil {
		cfg.UpstreamTimeout = *v
	}
	if v := os.Getenv("RELAYGATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RELAYGATE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envDuration(key string) *time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	d := time.Duration(ms) * time.Millisecond
	return &d
}

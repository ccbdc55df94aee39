// Package config holds client configuration: defaults, optional YAML file,
// WOLKENDB_* environment overrides, and pool option validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Pool option defaults.
const (
	DefaultMinSessions      = 10
	DefaultMaxSessions      = 100
	DefaultKeepAliveSeconds = 1800
	DefaultWriteRatio       = 0.3
)

// PoolConfig configures the per-client session pool.
type PoolConfig struct {
	MinSessions      int     `yaml:"min_sessions"`
	MaxSessions      int     `yaml:"max_sessions"`
	KeepAliveSeconds int     `yaml:"keepalive_seconds"`
	WriteRatio       float64 `yaml:"write_ratio"`
	// FailOnExhausted selects the acquire policy when the pool is at max
	// and empty: true errors immediately, false blocks until a release.
	FailOnExhausted bool `yaml:"fail_on_exhausted"`
}

func (p PoolConfig) KeepAlive() time.Duration {
	return time.Duration(p.KeepAliveSeconds) * time.Second
}

// Validate rejects invalid pool options at client-construction time.
func (p PoolConfig) Validate() error {
	if p.MinSessions < 0 {
		return fmt.Errorf("min_sessions must be >= 0, got %d", p.MinSessions)
	}
	if p.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be > 0, got %d", p.MaxSessions)
	}
	if p.MinSessions > p.MaxSessions {
		return fmt.Errorf("min_sessions (%d) must not exceed max_sessions (%d)", p.MinSessions, p.MaxSessions)
	}
	if p.KeepAliveSeconds <= 0 {
		return fmt.Errorf("keepalive_seconds must be > 0, got %d", p.KeepAliveSeconds)
	}
	if p.WriteRatio < 0 || p.WriteRatio > 1 {
		return fmt.Errorf("write_ratio must be in [0, 1], got %g", p.WriteRatio)
	}
	return nil
}

type Config struct {
	Endpoint       string     `yaml:"endpoint"`
	APIKey         string     `yaml:"api_key"`
	Project        string     `yaml:"project"`
	TimeoutSeconds int        `yaml:"timeout_seconds"`
	Pool           PoolConfig `yaml:"pool"`
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultPool returns the built-in pool defaults: eager minimum, fail-fast
// exhaustion policy.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MinSessions:      DefaultMinSessions,
		MaxSessions:      DefaultMaxSessions,
		KeepAliveSeconds: DefaultKeepAliveSeconds,
		WriteRatio:       DefaultWriteRatio,
		FailOnExhausted:  true,
	}
}

// Load builds a Config from defaults, an optional YAML file, and env
// overrides, then validates it. A missing file is not an error.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Endpoint:       "https://wolke.example.com",
		TimeoutSeconds: 60,
		Pool:           DefaultPool(),
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := cfg.Pool.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	return cfg, nil
}

// ResolveProject returns the project id: the explicit value if set,
// otherwise the first non-empty entry of the env fallback chain. getenv is
// an explicit parameter so tests can pass a snapshot instead of the real
// environment.
func ResolveProject(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	for _, key := range []string{"WOLKENDB_PROJECT", "CLOUD_PROJECT", "GCLOUD_PROJECT"} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("WOLKENDB_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := getenv("WOLKENDB_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := getenv("WOLKENDB_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := getenv("WOLKENDB_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
		}
	}
	if v := getenv("WOLKENDB_POOL_MIN_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MinSessions = n
		}
	}
	if v := getenv("WOLKENDB_POOL_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxSessions = n
		}
	}
	if v := getenv("WOLKENDB_POOL_KEEPALIVE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.KeepAliveSeconds = n
		}
	}
	if v := getenv("WOLKENDB_POOL_WRITE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pool.WriteRatio = f
		}
	}
	if v := getenv("WOLKENDB_POOL_FAIL_ON_EXHAUSTED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Pool.FailOnExhausted = b
		}
	}
}

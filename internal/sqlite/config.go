package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOpenConns   = 4
	defaultBusyTimeout = 5 * time.Second
)

// Config controls the local graph cache database. Values come from an
// optional JSON file named by DEPGRAPH_SQLITE_CONFIG, overridden by the
// DEPGRAPH_SQLITE_* environment, overridden by whatever the caller merges on
// top.
type Config struct {
	Path         string `json:"path"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	BusyTimeout  string `json:"busy_timeout"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if path := strings.TrimSpace(override.Path); path != "" {
		result.Path = path
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if busy := strings.TrimSpace(override.BusyTimeout); busy != "" {
		result.BusyTimeout = busy
	}
	return result
}

// BusyTimeoutDuration parses the configured busy timeout, falling back to the
// default when unset or unparseable.
func (c Config) BusyTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(c.BusyTimeout)); err == nil && d > 0 {
		return d
	}
	return defaultBusyTimeout
}

func LoadConfig() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("DEPGRAPH_SQLITE_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read sqlite config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse sqlite config: %w", err)
		}
	}
	env, err := configFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(env)
	cfg.applyDefaults()
	return cfg, nil
}

func configFromEnv() (Config, error) {
	cfg := Config{
		Path:        os.Getenv("DEPGRAPH_SQLITE_PATH"),
		BusyTimeout: os.Getenv("DEPGRAPH_SQLITE_BUSY_TIMEOUT"),
	}
	var err error
	if cfg.MaxOpenConns, err = envInt("DEPGRAPH_SQLITE_MAX_OPEN_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DEPGRAPH_SQLITE_MAX_IDLE_CONNS"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config controls one graph build. Values come from an optional JSON file
// (DEPGRAPH_CONFIG_FILE) overridden by environment variables, with flag values
// merged on top by the command layer.
type Config struct {
	// SchedulerPaths are Control-M export files or directories to walk for
	// *.xml exports.
	SchedulerPaths []string `json:"scheduler_paths"`
	// CodeRoots are the directories scanned for source members.
	CodeRoots []string `json:"code_roots"`
	// Workers bounds the parse worker pool.
	Workers int `json:"workers"`
	// OutputPath, when set, receives the assembled graph as JSON.
	OutputPath string `json:"output_path"`
	// CachePath, when set, is the SQLite file the graph is persisted to.
	CachePath string `json:"cache_path"`
	// ListenAddr, when set, serves the query API after the build.
	ListenAddr string `json:"listen_addr"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if len(override.SchedulerPaths) > 0 {
		result.SchedulerPaths = override.SchedulerPaths
	}
	if len(override.CodeRoots) > 0 {
		result.CodeRoots = override.CodeRoots
	}
	if override.Workers > 0 {
		result.Workers = override.Workers
	}
	if strings.TrimSpace(override.OutputPath) != "" {
		result.OutputPath = strings.TrimSpace(override.OutputPath)
	}
	if strings.TrimSpace(override.CachePath) != "" {
		result.CachePath = strings.TrimSpace(override.CachePath)
	}
	if strings.TrimSpace(override.ListenAddr) != "" {
		result.ListenAddr = strings.TrimSpace(override.ListenAddr)
	}
	return result
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("DEPGRAPH_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read pipeline config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse pipeline config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	if paths := strings.TrimSpace(os.Getenv("DEPGRAPH_SCHEDULER_PATHS")); paths != "" {
		cfg.SchedulerPaths = splitList(paths)
	}
	if roots := strings.TrimSpace(os.Getenv("DEPGRAPH_CODE_ROOTS")); roots != "" {
		cfg.CodeRoots = splitList(roots)
	}
	if workers := strings.TrimSpace(os.Getenv("DEPGRAPH_WORKERS")); workers != "" {
		value, err := strconv.Atoi(workers)
		if err != nil {
			return Config{}, fmt.Errorf("parse DEPGRAPH_WORKERS: %w", err)
		}
		if value > 0 {
			cfg.Workers = value
		}
	}
	if out := strings.TrimSpace(os.Getenv("DEPGRAPH_OUTPUT")); out != "" {
		cfg.OutputPath = out
	}
	if cache := strings.TrimSpace(os.Getenv("DEPGRAPH_CACHE")); cache != "" {
		cfg.CachePath = cache
	}
	if addr := strings.TrimSpace(os.Getenv("DEPGRAPH_ADDR")); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

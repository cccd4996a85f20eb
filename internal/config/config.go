package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for casesmith
type Config struct {
	// Extensions lists the source file extensions to analyze
	Extensions []string `yaml:"extensions" env:"CASESMITH_EXTENSIONS"`

	// ExcludeDirs lists directory names skipped at any depth
	ExcludeDirs []string `yaml:"exclude_dirs" env:"CASESMITH_EXCLUDE_DIRS"`

	// ResultsDir is the results folder created inside the scanned root
	ResultsDir string `yaml:"results_dir" env:"CASESMITH_RESULTS_DIR"`

	// Workers bounds the number of files extracted in parallel
	Workers int `yaml:"workers" env:"CASESMITH_WORKERS"`

	// Cache enables the incremental extraction cache
	Cache     bool `yaml:"cache" env:"CASESMITH_CACHE"`
	CacheSize int  `yaml:"cache_size" env:"CASESMITH_CACHE_SIZE"`

	// SARIF enables security-flow.sarif next to security-flow.json
	SARIF bool `yaml:"sarif" env:"CASESMITH_SARIF"`

	// SQLitePath, when set, receives a copy of the security flow
	SQLitePath string `yaml:"sqlite_path" env:"CASESMITH_SQLITE_PATH"`

	// Logging
	LogLevel string `yaml:"log_level" env:"CASESMITH_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"CASESMITH_JSON_LOGS"`

	// Raw is the text of the config file that was read, shown unchanged
	// by the commands.
	Raw string `yaml:"-"`

	// Source is the path Raw was read from.
	Source string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extensions:  []string{".ts", ".tsx"},
		ExcludeDirs: []string{".git", "node_modules", ".casesmithresults", "dist", "build", "target"},
		ResultsDir:  ".casesmithresults",
		Workers:     runtime.NumCPU(),
		Cache:       true,
		CacheSize:   4096,
		SARIF:       true,
		SQLitePath:  "",
		LogLevel:    "info",
		JSONLogs:    false,
	}
}

// globalConfigFilePath returns the global config file path (~/.casesmith/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".casesmith", "config.yaml")
	}
	return filepath.Join(home, ".casesmith", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.casesmith/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".casesmith", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables (a ./.env file is loaded first)
// 2. Project-level config (./.casesmith/config.yaml)
// 3. Global config (~/.casesmith/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Raw = string(data)
		cfg.Source = path
	}

	return finish(cfg)
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Raw = string(data)
	cfg.Source = path

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CASESMITH_EXTENSIONS"); v != "" {
		cfg.Extensions = splitList(v)
	}
	if v := os.Getenv("CASESMITH_EXCLUDE_DIRS"); v != "" {
		cfg.ExcludeDirs = splitList(v)
	}
	if v := os.Getenv("CASESMITH_RESULTS_DIR"); v != "" {
		cfg.ResultsDir = v
	}
	if v := os.Getenv("CASESMITH_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("CASESMITH_CACHE"); v != "" {
		cfg.Cache = parseBool(v)
	}
	if v := os.Getenv("CASESMITH_CACHE_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = i
		}
	}
	if v := os.Getenv("CASESMITH_SARIF"); v != "" {
		cfg.SARIF = parseBool(v)
	}
	if v := os.Getenv("CASESMITH_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("CASESMITH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CASESMITH_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
}

// normalize lower-cases extensions and adds a missing leading dot.
func (c *Config) normalize() {
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must list at least one file extension")
	}
	for _, ext := range c.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q (must look like .ts)", ext)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Cache && c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive when cache is enabled")
	}
	if strings.TrimSpace(c.ResultsDir) == "" {
		return fmt.Errorf("results_dir must not be empty")
	}
	clean := filepath.Clean(c.ResultsDir)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("results_dir must be a relative folder name inside the scanned root")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

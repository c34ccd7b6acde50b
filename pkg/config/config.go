package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
)

// Config holds all stockbuzz configuration.
type Config struct {
	DBPath      string             `yaml:"db_path"`
	Model       string             `yaml:"model"`
	Log         LogConfig          `yaml:"log"`
	Cache       CacheConfig        `yaml:"cache"`
	Queue       QueueConfig        `yaml:"queue"`
	Retry       retry.Policy       `yaml:"retry"`
	Budget      BudgetConfig       `yaml:"budget"`
	Router      RouterConfig       `yaml:"router"`
	Audit       models.AuditConfig `yaml:"audit"`
	Server      ServerConfig       `yaml:"server"`
	Refresh     RefreshConfig      `yaml:"refresh"`
	Credentials CredentialsConfig  `yaml:"credentials"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// QueueConfig controls request pacing.
type QueueConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// BudgetConfig controls budget enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// RouterConfig overrides model settings per dashboard feature.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a feature name (or "*") to model settings. Unset fields
// keep the feature's built-in value.
type RouteConfig struct {
	Feature     string   `yaml:"feature"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	Search      *bool    `yaml:"search"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// RefreshConfig controls periodic dashboard refresh.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Widgets  []string      `yaml:"widgets"`
}

// CredentialsConfig lists where provider keys come from when none is stored.
type CredentialsConfig struct {
	EnvVars       []string `yaml:"env_vars"`
	PolygonEnvVar string   `yaml:"polygon_env_var"`
	GeminiBaseURL string   `yaml:"gemini_base_url"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: DefaultDBPath(),
		Model:  llm.DefaultModel,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
		Queue: QueueConfig{
			Delay: 6 * time.Second,
		},
		Retry: retry.DefaultPolicy(),
		Audit: models.AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
			Include:       []string{"prompts", "responses"},
			MaxBodySize:   8192,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8787",
		},
		Refresh: RefreshConfig{
			Interval: 5 * time.Minute,
			Widgets:  []string{"indices", "summary", "movers"},
		},
		Credentials: CredentialsConfig{
			EnvVars:       []string{"GEMINI_API_KEY", "API_KEY"},
			PolygonEnvVar: "POLYGON_API_KEY",
		},
	}
}

// DefaultPath is the config file location under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "stockbuzz", "config.yaml")
}

// DefaultDBPath is the database location under the XDG data directory.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "stockbuzz", "stockbuzz.db")
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Cache.TTL < 0:
		return errors.New("config: cache.ttl must not be negative")
	case c.Queue.Delay < 0:
		return errors.New("config: queue.delay must not be negative")
	case c.Retry.MaxAttempts < 0:
		return errors.New("config: retry.max_attempts must not be negative")
	case c.Refresh.Interval < 0:
		return errors.New("config: refresh.interval must not be negative")
	}
	for i, p := range c.Budget.Policies {
		if p.Period != models.BudgetDaily && p.Period != models.BudgetMonthly {
			return fmt.Errorf("config: budget.policies[%d]: unknown period %q", i, p.Period)
		}
	}
	for i, r := range c.Router.Routes {
		if r.Feature == "" {
			return fmt.Errorf("config: router.routes[%d]: feature is required", i)
		}
	}
	return nil
}

// EnsureDBDir creates the directory holding DBPath.
func (c *Config) EnsureDBDir() error {
	dir := filepath.Dir(c.DBPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

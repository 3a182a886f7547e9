package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfig       = "MODHOST_CONFIG"
	envStorePath    = "MODHOST_STORE_PATH"
	envStoreDriver  = "MODHOST_STORE_DRIVER"
	envRendererPort = "MODHOST_RENDERER_PORT"
	envModules      = "MODHOST_MODULES"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config is the root runtime configuration.
type Config struct {
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Renderer  RendererConfig  `json:"renderer" yaml:"renderer"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Lifecycle LifecycleConfig `json:"lifecycle" yaml:"lifecycle"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Modules   ModulesConfig   `json:"modules" yaml:"modules"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// StoreConfig selects where setting values are persisted.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

// RendererConfig configures the WebSocket endpoint renderers connect to.
type RendererConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// GatewayConfig configures the status HTTP server.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

type LifecycleConfig struct {
	InitTimeoutMS int `json:"init_timeout_ms" yaml:"init_timeout_ms"`
	QueueSize     int `json:"queue_size" yaml:"queue_size"`
}

// InitTimeout is the liveness window for init.
func (c LifecycleConfig) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMS) * time.Millisecond
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// ModulesConfig selects built-in modules and where their resources live.
type ModulesConfig struct {
	Enabled      []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ResourceRoot string   `json:"resource_root,omitempty" yaml:"resource_root,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Format: "text", Level: "info"},
		Store:   StoreConfig{Driver: StoreSQLite, Path: filepath.Join("~", ".modhost", "settings.db")},
		Renderer: RendererConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    7610,
		},
		Gateway:   GatewayConfig{Host: "127.0.0.1", Port: 7611},
		Lifecycle: LifecycleConfig{InitTimeoutMS: 3000, QueueSize: 100},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// LoadConfig resolves the config file, decodes it over Default() and
// applies environment overrides. An explicit path must exist; without one,
// a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	configPath, err := findConfigPath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if configPath != "" {
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", filepath.Base(path), err)
		}
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of %s, %s", c.Store.Driver, StoreSQLite, StoreMemory))
	}

	if c.Renderer.Port < 0 || c.Renderer.Port > 65535 {
		errs = append(errs, fmt.Errorf("renderer.port %d out of range", c.Renderer.Port))
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d out of range", c.Gateway.Port))
	}
	if c.Lifecycle.InitTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("lifecycle.init_timeout_ms %d is negative", c.Lifecycle.InitTimeoutMS))
	}
	if c.Lifecycle.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("lifecycle.queue_size %d must be positive", c.Lifecycle.QueueSize))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if value := strings.TrimSpace(os.Getenv(envStorePath)); value != "" {
		cfg.Store.Path = value
	}
	if value := strings.TrimSpace(os.Getenv(envStoreDriver)); value != "" {
		cfg.Store.Driver = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv(envRendererPort)); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envRendererPort, err)
		}
		cfg.Renderer.Port = port
	}
	if value := strings.TrimSpace(os.Getenv(envModules)); value != "" {
		cfg.Modules.Enabled = parseCSV(value)
	}
	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, then MODHOST_CONFIG, then cwd-local
// fallback paths. An empty result means no file was found.
func findConfigPath(explicit string) (string, error) {
	if value := strings.TrimSpace(explicit); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("config file not found: %s", value)
	}

	if value := strings.TrimSpace(os.Getenv(envConfig)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfig, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "modhost.json"),
		filepath.Join(cwd, "modhost.yaml"),
		filepath.Join(cwd, "modhost.yml"),
		filepath.Join(cwd, "config", "modhost.json"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}

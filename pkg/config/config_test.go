package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envConfig, envStorePath, envStoreDriver, envRendererPort, envModules} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	unsetConfigEnv(t)

	path := filepath.Join(t.TempDir(), "modhost.json")
	content := `{
	  "store": {"driver": "memory"},
	  "renderer": {"port": 9000, "allowed_origins": ["http://localhost:3000"]},
	  "lifecycle": {"init_timeout_ms": 500},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(envConfig, path)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" || !cfg.Logging.AddSource {
		t.Fatalf("logging = %+v, want json/debug/add_source", cfg.Logging)
	}
	if cfg.Store.Driver != StoreMemory {
		t.Fatalf("store.driver = %q, want %q", cfg.Store.Driver, StoreMemory)
	}
	if cfg.Renderer.Port != 9000 || cfg.Renderer.Host != "127.0.0.1" {
		t.Fatalf("renderer = %+v, want port 9000 on default host", cfg.Renderer)
	}
	if cfg.Lifecycle.InitTimeout() != 500*time.Millisecond {
		t.Fatalf("init timeout = %s, want 500ms", cfg.Lifecycle.InitTimeout())
	}
	if cfg.Lifecycle.QueueSize != 100 {
		t.Fatalf("queue_size = %d, want default 100", cfg.Lifecycle.QueueSize)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	unsetConfigEnv(t)

	path := filepath.Join(t.TempDir(), "modhost.yaml")
	content := `
gateway:
  host: 0.0.0.0
  port: 8080
modules:
  enabled: [developer.Sample_Module]
  resource_root: /srv/modules
metrics:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Gateway.Host != "0.0.0.0" || cfg.Gateway.Port != 8080 {
		t.Fatalf("gateway = %+v", cfg.Gateway)
	}
	if len(cfg.Modules.Enabled) != 1 || cfg.Modules.ResourceRoot != "/srv/modules" {
		t.Fatalf("modules = %+v", cfg.Modules)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics.enabled = true, want false")
	}
}

func TestExplicitPathWinsOverEnv(t *testing.T) {
	unsetConfigEnv(t)
	dir := t.TempDir()

	envPath := filepath.Join(dir, "env.json")
	flagPath := filepath.Join(dir, "flag.json")
	if err := os.WriteFile(envPath, []byte(`{"gateway": {"port": 1111}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(flagPath, []byte(`{"gateway": {"port": 2222}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(envConfig, envPath)

	cfg, err := LoadConfig(flagPath)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Gateway.Port != 2222 {
		t.Fatalf("gateway.port = %d, want 2222", cfg.Gateway.Port)
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	def := Default()
	if cfg.Renderer.Port != def.Renderer.Port || cfg.Renderer.Host != def.Renderer.Host {
		t.Fatalf("renderer = %+v, want defaults", cfg.Renderer)
	}
	if cfg.Store.Driver != StoreSQLite {
		t.Fatalf("store.driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestEnvOverrides(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envStorePath, "/tmp/settings.db")
	t.Setenv(envRendererPort, "9999")
	t.Setenv(envModules, " a, ,b ")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Store.Path != "/tmp/settings.db" {
		t.Fatalf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Renderer.Port != 9999 {
		t.Fatalf("renderer.port = %d, want 9999", cfg.Renderer.Port)
	}
	if strings.Join(cfg.Modules.Enabled, "|") != "a|b" {
		t.Fatalf("modules.enabled = %v, want [a b]", cfg.Modules.Enabled)
	}

	t.Setenv(envRendererPort, "not-a-port")
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected error for invalid renderer port")
	}
}

func TestLoadConfigInvalidPaths(t *testing.T) {
	unsetConfigEnv(t)

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing explicit path")
	}

	t.Setenv(envConfig, filepath.Join(t.TempDir(), "missing.json"))
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected error for missing env path")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	cfg.Lifecycle.QueueSize = 0
	cfg.Metrics.Path = "metrics"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"store.driver", "queue_size", "metrics.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

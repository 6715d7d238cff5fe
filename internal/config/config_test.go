// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, env overrides, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: "8080"

auth:
  api_key: "secret-key"

servers:
  dir: "/srv/mcp"
  config_file: "servers.json"
  name: "readability"

agent:
  response_timeout: "10s"
  init_wait: "500ms"
  supported_languages:
    - node
    - python
  supported_types:
    - github

database:
  path: "./requests.db"

logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:8080")
	}
	if cfg.Auth.APIKey != "secret-key" {
		t.Errorf("Auth.APIKey = %q, want %q", cfg.Auth.APIKey, "secret-key")
	}
	if !cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = false, want true")
	}
	if cfg.Servers.Dir != "/srv/mcp" {
		t.Errorf("Servers.Dir = %q, want %q", cfg.Servers.Dir, "/srv/mcp")
	}
	if cfg.Agent.ResponseTimeout != 10*time.Second {
		t.Errorf("Agent.ResponseTimeout = %v, want 10s", cfg.Agent.ResponseTimeout)
	}
	if cfg.Agent.InitWait != 500*time.Millisecond {
		t.Errorf("Agent.InitWait = %v, want 500ms", cfg.Agent.InitWait)
	}
	if cfg.Database.Path != "./requests.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./requests.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_MCP_API_KEY", "expanded-key")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
auth:
  api_key: "${TEST_MCP_API_KEY}"
servers:
  name: "readability"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.APIKey != "expanded-key" {
		t.Errorf("Auth.APIKey = %q, want %q", cfg.Auth.APIKey, "expanded-key")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
agent:
  response_timeout: "not-a-duration"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "response_timeout") {
		t.Errorf("error = %v, want mention of response_timeout", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:3000" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:3000")
	}
	if cfg.Servers.Dir != DefaultServersDir {
		t.Errorf("Servers.Dir = %q, want %q", cfg.Servers.Dir, DefaultServersDir)
	}
	if cfg.Servers.Name != DefaultServerName {
		t.Errorf("Servers.Name = %q, want %q", cfg.Servers.Name, DefaultServerName)
	}
	if cfg.Agent.ResponseTimeout != DefaultResponseTimeout {
		t.Errorf("Agent.ResponseTimeout = %v, want %v", cfg.Agent.ResponseTimeout, DefaultResponseTimeout)
	}
	if len(cfg.Agent.SupportedLanguages) != 2 {
		t.Errorf("SupportedLanguages = %v, want [node python]", cfg.Agent.SupportedLanguages)
	}
	if cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = true with no key configured, want false")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MCP_SERVER_NAME", "fetcher")
	t.Setenv("RESPONSE_TIMEOUT_SECS", "5")
	t.Setenv("SUPPORTED_LANGUAGES", "node, python , deno")
	t.Setenv("HTTP_API_KEY", "k")
	t.Setenv("DISABLE_AUTH", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9999")
	}
	if cfg.Servers.Name != "fetcher" {
		t.Errorf("Servers.Name = %q, want %q", cfg.Servers.Name, "fetcher")
	}
	if cfg.Agent.ResponseTimeout != 5*time.Second {
		t.Errorf("Agent.ResponseTimeout = %v, want 5s", cfg.Agent.ResponseTimeout)
	}
	want := []string{"node", "python", "deno"}
	if len(cfg.Agent.SupportedLanguages) != len(want) {
		t.Fatalf("SupportedLanguages = %v, want %v", cfg.Agent.SupportedLanguages, want)
	}
	for i, lang := range want {
		if cfg.Agent.SupportedLanguages[i] != lang {
			t.Errorf("SupportedLanguages[%d] = %q, want %q", i, cfg.Agent.SupportedLanguages[i], lang)
		}
	}
	if cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = true with DISABLE_AUTH set, want false")
	}
}

func TestValidate_BadTimeout(t *testing.T) {
	cfg := &Config{
		Servers: ServersConfig{Name: "x", ConfigFile: "y"},
		Agent: AgentConfig{
			ResponseTimeout:    -1 * time.Second,
			SupportedLanguages: []string{"node"},
			SupportedTypes:     []string{"github"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for negative timeout, got nil")
	}
}

// ABOUTME: Configuration loading and parsing for mcp-gateway
// ABOUTME: Supports YAML files with environment variable expansion plus env-only loading

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the environment contract this gateway has always shipped with.
const (
	DefaultServersDir      = "/app/mcp-servers"
	DefaultResponseTimeout = 30 * time.Second
	DefaultInitWait        = 2 * time.Second
	DefaultConfigFile      = "mcp_servers.config.json"
	DefaultServerName      = "readability"
	DefaultHost            = "0.0.0.0"
	DefaultPort            = "3000"
)

// Config represents the complete mcp-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Servers  ServersConfig  `yaml:"servers"`
	Agent    AgentConfig    `yaml:"agent"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP bind address configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Addr returns the host:port bind address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig holds bearer token authentication configuration.
// Auth is enforced only when an API key is set and Disabled is false.
type AuthConfig struct {
	APIKey   string `yaml:"api_key"`
	Disabled bool   `yaml:"disabled"`
}

// Enabled reports whether the bearer check gates API calls.
func (a AuthConfig) Enabled() bool {
	return !a.Disabled && a.APIKey != ""
}

// ServersConfig locates the managed MCP server definitions
type ServersConfig struct {
	Dir        string `yaml:"dir"`         // install root for fetched server sources
	ConfigFile string `yaml:"config_file"` // descriptor mapping file (.json or .toml)
	Name       string `yaml:"name"`        // selected server name
}

// AgentConfig holds subprocess timing and capability configuration
type AgentConfig struct {
	ResponseTimeout time.Duration `yaml:"-"`
	InitWait        time.Duration `yaml:"-"`

	SupportedLanguages []string `yaml:"supported_languages"`
	SupportedTypes     []string `yaml:"supported_types"`

	// Raw string values for YAML unmarshaling
	ResponseTimeoutRaw string `yaml:"response_timeout"`
	InitWaitRaw        string `yaml:"init_wait"`
}

// DatabaseConfig holds the request log database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. Duration strings
// are parsed into time.Duration values. Environment overrides (see FromEnv) are
// applied on top of the file, then defaults fill anything still unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config purely from environment variables, falling back to
// the built-in defaults. This is the zero-file deployment path.
func FromEnv() (*Config, error) {
	var cfg Config
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overlays the environment variable surface onto cfg.
// Set variables always win over file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("HTTP_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("DISABLE_AUTH"); v != "" {
		cfg.Auth.Disabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("MCP_SERVERS_DIR"); v != "" {
		cfg.Servers.Dir = v
	}
	if v := os.Getenv("MCP_CONFIG_FILE"); v != "" {
		cfg.Servers.ConfigFile = v
	}
	if v := os.Getenv("MCP_SERVER_NAME"); v != "" {
		cfg.Servers.Name = v
	}
	if v := os.Getenv("RESPONSE_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Agent.ResponseTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("PROCESS_INIT_WAIT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			cfg.Agent.InitWait = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SUPPORTED_LANGUAGES"); v != "" {
		cfg.Agent.SupportedLanguages = splitList(v)
	}
	if v := os.Getenv("SUPPORTED_SERVER_TYPES"); v != "" {
		cfg.Agent.SupportedTypes = splitList(v)
	}
	if v := os.Getenv("MCP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// applyDefaults fills any field still unset after file and env loading.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Servers.Dir == "" {
		cfg.Servers.Dir = DefaultServersDir
	}
	if cfg.Servers.ConfigFile == "" {
		cfg.Servers.ConfigFile = DefaultConfigFile
	}
	if cfg.Servers.Name == "" {
		cfg.Servers.Name = DefaultServerName
	}
	if cfg.Agent.ResponseTimeout == 0 {
		cfg.Agent.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.Agent.InitWait == 0 {
		cfg.Agent.InitWait = DefaultInitWait
	}
	if len(cfg.Agent.SupportedLanguages) == 0 {
		cfg.Agent.SupportedLanguages = []string{"node", "python"}
	}
	if len(cfg.Agent.SupportedTypes) == 0 {
		cfg.Agent.SupportedTypes = []string{"github"}
	}
}

// splitList splits a comma-separated value into trimmed non-empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Servers.Name == "" {
		return fmt.Errorf("servers.name is required")
	}
	if c.Servers.ConfigFile == "" {
		return fmt.Errorf("servers.config_file is required")
	}
	if c.Agent.ResponseTimeout <= 0 {
		return fmt.Errorf("agent.response_timeout must be positive")
	}
	if c.Agent.InitWait < 0 {
		return fmt.Errorf("agent.init_wait must not be negative")
	}
	if len(c.Agent.SupportedLanguages) == 0 {
		return fmt.Errorf("agent.supported_languages must not be empty")
	}
	if len(c.Agent.SupportedTypes) == 0 {
		return fmt.Errorf("agent.supported_types must not be empty")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.ResponseTimeoutRaw != "" {
		cfg.Agent.ResponseTimeout, err = time.ParseDuration(cfg.Agent.ResponseTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing response_timeout %q: %w", cfg.Agent.ResponseTimeoutRaw, err)
		}
	}

	if cfg.Agent.InitWaitRaw != "" {
		cfg.Agent.InitWait, err = time.ParseDuration(cfg.Agent.InitWaitRaw)
		if err != nil {
			return fmt.Errorf("parsing init_wait %q: %w", cfg.Agent.InitWaitRaw, err)
		}
	}

	return nil
}

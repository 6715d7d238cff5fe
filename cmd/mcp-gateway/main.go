// ABOUTME: Entry point for the mcp-gateway HTTP bridge server
// ABOUTME: Supervises one MCP server subprocess and exposes it over HTTP

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/mcp-gateway/internal/config"
	"github.com/2389/mcp-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _ __ ___   ___ _ __         __ _  __ _| |_ _____      ____ _ _   _
| '_ ' _ \ / __| '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| | | | | | (__| |_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_| |_| |_|\___| .__/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
               |_|          |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: MCP_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/mcp-gateway/gateway.yaml > ~/.config/mcp-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MCP_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mcp-gateway", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mcp-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		fmt.Println("  ready    Check whether the MCP server process is alive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx, "/health")
	case "ready":
		err = runHealth(ctx, "/health/ready")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when it exists, otherwise falls back to
// environment variables only. Container deployments usually run env-only.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := config.FromEnv()
		return cfg, "(env)", err
	}
	cfg, err := config.Load(configPath)
	return cfg, configPath, err
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Server:  %s\n", cfg.Servers.Name)
	if !cfg.Auth.Enabled() {
		yellow.Print("    ▶ ")
		fmt.Printf("Auth:    disabled\n")
	}

	fmt.Println()

	logger.Info("starting mcp-gateway",
		"config", configPath,
		"http_addr", cfg.Server.Addr(),
		"server_name", cfg.Servers.Name,
	)

	// Create and run gateway. New bootstraps the MCP server source and
	// launches the subprocess, so it gets the signal-aware context too.
	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context, path string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}

	url := fmt.Sprintf("http://%s:%s%s", host, cfg.Server.Port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("mcp-gateway configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	host := prompt(reader, "Bind host", "0.0.0.0")
	port := prompt(reader, "Bind port", "3000")

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	apiKey := prompt(reader, "HTTP API key (leave empty to disable auth)", "")

	// MCP server
	fmt.Println("\n--- MCP Server Configuration ---")
	serversDir := prompt(reader, "Server install directory", "/app/mcp-servers")
	configFile := prompt(reader, "Server descriptor file", "mcp_servers.config.json")
	serverName := prompt(reader, "Server name", "readability")
	responseTimeout := prompt(reader, "Response timeout", "30s")
	initWait := prompt(reader, "Post-launch init wait", "2s")

	// Request log
	fmt.Println("\n--- Request Log Configuration ---")
	dbPath := prompt(reader, "SQLite request log path (leave empty to disable)", "")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	content := renderInitConfig(initOptions{
		host:            host,
		port:            port,
		apiKey:          apiKey,
		serversDir:      serversDir,
		configFile:      configFile,
		serverName:      serverName,
		responseTimeout: responseTimeout,
		initWait:        initWait,
		dbPath:          dbPath,
		logLevel:        logLevel,
		logFormat:       logFormat,
	})

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  mcp-gateway serve\n")

	return nil
}

type initOptions struct {
	host, port, apiKey          string
	serversDir, configFile      string
	serverName                  string
	responseTimeout, initWait   string
	dbPath, logLevel, logFormat string
}

// renderInitConfig generates the YAML config document. Values are quoted
// with strconv.Quote so keys containing quotes or backslashes stay parseable.
func renderInitConfig(o initOptions) string {
	var cfg strings.Builder
	cfg.WriteString("# mcp-gateway configuration\n")
	cfg.WriteString("# Generated by mcp-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  host: %s\n", strconv.Quote(o.host)))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", strconv.Quote(o.port)))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	if o.apiKey != "" {
		cfg.WriteString(fmt.Sprintf("  api_key: %s\n", strconv.Quote(o.apiKey)))
	} else {
		cfg.WriteString("  disabled: true\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("servers:\n")
	cfg.WriteString(fmt.Sprintf("  dir: %s\n", strconv.Quote(o.serversDir)))
	cfg.WriteString(fmt.Sprintf("  config_file: %s\n", strconv.Quote(o.configFile)))
	cfg.WriteString(fmt.Sprintf("  name: %s\n", strconv.Quote(o.serverName)))
	cfg.WriteString("\n")

	cfg.WriteString("agent:\n")
	cfg.WriteString(fmt.Sprintf("  response_timeout: %s\n", strconv.Quote(o.responseTimeout)))
	cfg.WriteString(fmt.Sprintf("  init_wait: %s\n", strconv.Quote(o.initWait)))
	cfg.WriteString("\n")

	if o.dbPath != "" {
		cfg.WriteString("database:\n")
		cfg.WriteString(fmt.Sprintf("  path: %s\n", strconv.Quote(o.dbPath)))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %s\n", strconv.Quote(o.logLevel)))
	cfg.WriteString(fmt.Sprintf("  format: %s\n", strconv.Quote(o.logFormat)))

	return cfg.String()
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

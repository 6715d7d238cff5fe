// ABOUTME: Tests for the generated init config document.
// ABOUTME: Ensures rendered YAML survives hostile values and round-trips.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/2389/mcp-gateway/internal/config"
)

func baseInitOptions() initOptions {
	return initOptions{
		host:            "0.0.0.0",
		port:            "3000",
		serversDir:      "/app/mcp-servers",
		configFile:      "mcp_servers.config.json",
		serverName:      "readability",
		responseTimeout: "30s",
		initWait:        "2s",
		logLevel:        "info",
		logFormat:       "text",
	}
}

func TestRenderInitConfig_RoundTrip(t *testing.T) {
	o := baseInitOptions()
	o.apiKey = "plain-key"
	o.dbPath = "/var/lib/mcp/requests.db"

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(renderInitConfig(o)), &cfg))

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "plain-key", cfg.Auth.APIKey)
	assert.Equal(t, "readability", cfg.Servers.Name)
	assert.Equal(t, "/var/lib/mcp/requests.db", cfg.Database.Path)
	assert.Equal(t, "30s", cfg.Agent.ResponseTimeoutRaw)
}

func TestRenderInitConfig_QuotedValues(t *testing.T) {
	o := baseInitOptions()
	o.apiKey = `we"ird\key: #value`
	o.serverName = `name "with" quotes`

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(renderInitConfig(o)), &cfg))

	assert.Equal(t, `we"ird\key: #value`, cfg.Auth.APIKey)
	assert.Equal(t, `name "with" quotes`, cfg.Servers.Name)
}

func TestRenderInitConfig_NoKeyDisablesAuth(t *testing.T) {
	o := baseInitOptions()

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(renderInitConfig(o)), &cfg))

	assert.True(t, cfg.Auth.Disabled)
	assert.False(t, cfg.Auth.Enabled())
}

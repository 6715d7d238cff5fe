// ABOUTME: Tests for subprocess launch, liveness, immediate-exit detection, and release.
// ABOUTME: Uses real sh subprocesses; no mocks.

package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-gateway/internal/config"
	"github.com/2389/mcp-gateway/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startShell launches `sh -c script` through the same path Launch uses.
func startShell(t *testing.T, script string) *Process {
	t.Helper()
	p, err := Start(context.Background(), "test", "sh", []string{"-c", script}, 0, testLogger())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestStart_AliveAndPID(t *testing.T) {
	p := startShell(t, "sleep 10")

	assert.True(t, p.Alive())
	assert.Greater(t, p.PID(), 0)
	assert.Equal(t, "running", p.ExitStatus())
}

func TestStart_ImmediateExit(t *testing.T) {
	_, err := Start(context.Background(), "test", "sh", []string{"-c", "exit 3"}, 0, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImmediateExit))
	assert.Contains(t, err.Error(), "3")
}

func TestStart_SpawnFailure(t *testing.T) {
	_, err := Start(context.Background(), "test", "/nonexistent/interpreter", nil, 0, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawning process")
}

func TestProcess_ExitDetected(t *testing.T) {
	p := startShell(t, "sleep 0.2")

	require.True(t, p.Alive())
	require.Eventually(t, func() bool { return !p.Alive() }, 2*time.Second, 10*time.Millisecond)
	assert.NotEqual(t, "running", p.ExitStatus())
}

func TestProcess_CloseKills(t *testing.T) {
	p := startShell(t, "sleep 30")

	require.True(t, p.Alive())
	p.Close()
	assert.False(t, p.Alive())

	// Repeated Close is a no-op.
	p.Close()
}

func TestLaunch_UnsupportedLanguage(t *testing.T) {
	cfg := &config.Config{
		Servers: config.ServersConfig{Dir: t.TempDir()},
		Agent:   config.AgentConfig{SupportedLanguages: []string{"node"}},
	}
	desc := registry.Descriptor{Language: "ruby", Entrypoint: "main.rb"}

	_, err := Launch(context.Background(), "s", desc, cfg, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
}

func TestLaunch_SupportedButNoInterpreter(t *testing.T) {
	cfg := &config.Config{
		Servers: config.ServersConfig{Dir: t.TempDir()},
		Agent:   config.AgentConfig{SupportedLanguages: []string{"lua"}},
	}
	desc := registry.Descriptor{Language: "lua", Entrypoint: "main.lua"}

	_, err := Launch(context.Background(), "s", desc, cfg, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
	assert.Contains(t, err.Error(), "no interpreter")
}

func TestStart_InitWaitCancellable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Start(ctx, "test", "sh", []string{"-c", "sleep 10"}, 10*time.Second, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

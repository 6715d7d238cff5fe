// ABOUTME: Bootstrap guarantees a named MCP server is fetched, installed, and runnable.
// ABOUTME: Clones missing sources, runs install commands, and probes the runtime.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/2389/mcp-gateway/internal/config"
)

// Setup errors. All of them are fatal to startup: no process is ever
// launched after a bootstrap failure.
var (
	ErrUnsupportedType    = errors.New("unsupported server type")
	ErrMissingSource      = errors.New("repository not specified")
	ErrFetchFailed        = errors.New("fetching server source failed")
	ErrInstallFailed      = errors.New("install command failed")
	ErrEntrypointMissing  = errors.New("entrypoint not found")
	ErrRuntimeUnavailable = errors.New("runtime unavailable")
)

// Bootstrap ensures that, on return, the descriptor's entrypoint exists under
// <servers dir>/<name> and its declared runtime is operable. It is idempotent:
// when the server is already installed a later call only re-verifies.
func Bootstrap(ctx context.Context, name string, desc Descriptor, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With("server", name)

	if !slices.Contains(cfg.Agent.SupportedTypes, desc.Type) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedType, desc.Type, strings.Join(cfg.Agent.SupportedTypes, ", "))
	}

	if desc.Repository == "" {
		return fmt.Errorf("%w for server %q", ErrMissingSource, name)
	}

	serverDir := filepath.Join(cfg.Servers.Dir, name)

	needInstall := false
	if _, err := os.Stat(serverDir); err != nil {
		if err := fetchSource(ctx, desc.Repository, serverDir, logger); err != nil {
			return err
		}
		needInstall = true
	} else {
		logger.Debug("server directory exists, skipping fetch", "dir", serverDir)
	}

	entrypoint := filepath.Join(serverDir, desc.Entrypoint)
	if _, err := os.Stat(entrypoint); err != nil {
		logger.Warn("entrypoint not found, install needed", "entrypoint", entrypoint)
		needInstall = true
	}

	if needInstall {
		if desc.InstallCommand != "" {
			if err := runInstallCommand(ctx, desc.InstallCommand, serverDir, logger); err != nil {
				return err
			}
		} else {
			logger.Warn("entrypoint missing but no install command configured")
		}
	}

	if _, err := os.Stat(entrypoint); err != nil {
		return fmt.Errorf("%w: %s", ErrEntrypointMissing, entrypoint)
	}

	if err := probeRuntime(ctx, desc.Language, logger); err != nil {
		return err
	}

	logger.Info("server ready", "dir", serverDir, "entrypoint", desc.Entrypoint)
	return nil
}

// fetchSource clones the GitHub repository into dir.
func fetchSource(ctx context.Context, repo, dir string, logger *slog.Logger) error {
	url := "https://github.com/" + repo
	logger.Info("cloning server source", "repo", repo, "dir", dir)

	start := time.Now()
	cmd := exec.CommandContext(ctx, "git", "clone", url, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: git clone %s: %v: %s", ErrFetchFailed, repo, err, strings.TrimSpace(string(out)))
	}

	logger.Info("source cloned", "repo", repo, "elapsed", time.Since(start))
	return nil
}

// runInstallCommand executes the configured install command with the server
// directory as its working directory. Commands containing shell conjunction
// operators run through `sh -c`; anything else is split on whitespace and
// executed directly, with no quoting support.
func runInstallCommand(ctx context.Context, installCmd, dir string, logger *slog.Logger) error {
	logger.Info("installing dependencies", "command", installCmd)

	var cmd *exec.Cmd
	if strings.Contains(installCmd, "&&") || strings.Contains(installCmd, "||") {
		cmd = exec.CommandContext(ctx, "sh", "-c", installCmd)
	} else {
		parts := strings.Fields(installCmd)
		if len(parts) == 0 {
			return fmt.Errorf("%w: empty install command", ErrInstallFailed)
		}
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	cmd.Dir = dir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrInstallFailed, installCmd, err, strings.TrimSpace(string(out)))
	}

	logger.Info("dependencies installed", "elapsed", time.Since(start))
	return nil
}

// probeRuntime verifies the declared language's interpreter responds to a
// version request. Languages without a known interpreter probe are accepted
// as-is; the launcher enforces the supported-language set.
func probeRuntime(ctx context.Context, language string, logger *slog.Logger) error {
	binary := InterpreterFor(language)
	if binary == "" {
		return nil
	}

	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRuntimeUnavailable, binary, err)
	}

	logger.Info("runtime verified", "interpreter", binary, "version", strings.TrimSpace(string(out)))
	return nil
}

// InterpreterFor maps a language identifier to its interpreter binary.
// Returns "" for languages with no registered interpreter.
func InterpreterFor(language string) string {
	switch language {
	case "node":
		return "node"
	case "python":
		return "python"
	default:
		return ""
	}
}

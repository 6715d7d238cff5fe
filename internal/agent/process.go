// ABOUTME: Launches the MCP server subprocess with piped stdio and supervises its exit.
// ABOUTME: An exit watcher owns process reaping; liveness probes never block on it.

package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/2389/mcp-gateway/internal/config"
	"github.com/2389/mcp-gateway/internal/registry"
)

// spawnGrace is how long Launch waits after spawning before the one-shot
// immediate-exit check.
const spawnGrace = 100 * time.Millisecond

// Process is a running MCP server subprocess with piped stdio.
//
// Exactly one goroutine (the exit watcher) calls Wait on the underlying
// command; everyone else observes liveness through the done channel, so a
// probe never contends with an in-flight query or the stderr drain.
type Process struct {
	name   string
	cmd    *exec.Cmd
	pid    int
	logger *slog.Logger

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	done    chan struct{} // closed by the exit watcher after reaping
	waitErr error         // valid after done is closed

	closeOnce sync.Once
}

// Launch verifies the descriptor's language, spawns the interpreter on the
// entrypoint with all three stdio streams piped, and confirms the process
// survived its first moments. The returned Process must be released with
// Close on every exit path; Close kills the subprocess unless it has
// already exited, so no orphan survives the gateway.
func Launch(ctx context.Context, name string, desc registry.Descriptor, cfg *config.Config, logger *slog.Logger) (*Process, error) {
	if !slices.Contains(cfg.Agent.SupportedLanguages, desc.Language) {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedLanguage, desc.Language, strings.Join(cfg.Agent.SupportedLanguages, ", "))
	}

	interpreter := registry.InterpreterFor(desc.Language)
	if interpreter == "" {
		return nil, fmt.Errorf("%w: %q is configured as supported but has no interpreter", ErrUnsupportedLanguage, desc.Language)
	}

	entrypoint, err := filepath.Abs(filepath.Join(cfg.Servers.Dir, name, desc.Entrypoint))
	if err != nil {
		return nil, fmt.Errorf("resolving entrypoint path: %w", err)
	}

	return Start(ctx, name, interpreter, []string{entrypoint}, cfg.Agent.InitWait, logger)
}

// Start spawns binary with args and wires up supervision. Launch is the
// descriptor-driven front door; Start is the raw entry used when the exact
// invocation is already known.
//
// Pipes are created explicitly so the exit watcher's Wait never races the
// stream readers: the child's pipe ends are closed here in the parent, and
// readers observe a plain EOF when the child exits.
func Start(ctx context.Context, name, binary string, args []string, initWait time.Duration, logger *slog.Logger) (*Process, error) {
	logger = logger.With("server", name)
	logger.Info("starting process", "binary", binary, "args", args)

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrStreamUnavailable, err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrStreamUnavailable, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrStreamUnavailable, err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("spawning process: %w", err)
	}

	// The child owns its ends now.
	closeAll(stdinR, stdoutW, stderrW)

	p := &Process{
		name:   name,
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		logger: logger,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
	}

	go p.watchExit()
	go p.drainStderr()

	// Short grace interval, then one liveness check: a process that dies
	// within it is reported at startup instead of on the first query.
	if err := sleepCtx(ctx, spawnGrace); err != nil {
		p.Close()
		return nil, err
	}
	if !p.Alive() {
		status := p.ExitStatus()
		p.Close()
		return nil, fmt.Errorf("%w: %s", ErrImmediateExit, status)
	}

	logger.Info("process running", "pid", p.pid, "startup", time.Since(start))

	if initWait > 0 {
		logger.Debug("waiting for process initialization", "wait", initWait)
		if err := sleepCtx(ctx, initWait); err != nil {
			p.Close()
			return nil, err
		}
	}

	return p, nil
}

// watchExit reaps the subprocess exactly once and publishes the result.
func (p *Process) watchExit() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

// drainStderr consumes the subprocess's stderr line by line for its whole
// lifetime so the child is never blocked writing diagnostics. Lines have no
// length cap; a chatty child must always find the pipe drained. Stream
// closure is classified against the exit watcher's state.
func (p *Process) drainStderr() {
	reader := bufio.NewReader(p.stderr)
	lineCount := 0
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lineCount++
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				p.logger.Debug("stderr", "line_no", lineCount, "line", trimmed)
			}
		}
		if err != nil {
			break
		}
	}

	if p.Alive() {
		p.logger.Warn("stderr closed but process still running", "lines", lineCount)
	} else {
		p.logger.Warn("process terminated (stderr closed)", "status", p.ExitStatus(), "lines", lineCount)
	}
}

// Alive reports whether the process has not yet exited. It never blocks.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitStatus describes how the process ended. Valid only once Alive reports
// false; before that it returns "running".
func (p *Process) ExitStatus() string {
	select {
	case <-p.done:
		if p.waitErr != nil {
			return p.waitErr.Error()
		}
		return p.cmd.ProcessState.String()
	default:
		return "running"
	}
}

// PID returns the subprocess identifier.
func (p *Process) PID() int {
	return p.pid
}

// Name returns the configured server name this process was launched for.
func (p *Process) Name() string {
	return p.name
}

// Stdin returns the write side of the subprocess's standard input.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout returns the read side of the subprocess's standard output.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Close releases the process: stdin is closed, the subprocess is killed if
// still running, and the exit watcher is awaited so nothing is left
// unreaped. Safe to call multiple times.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.done:
		default:
			p.logger.Info("killing process", "pid", p.pid)
			_ = p.cmd.Process.Kill()
		}
		<-p.done
		_ = p.stdout.Close()
		_ = p.stderr.Close()
		p.logger.Info("process released", "pid", p.pid, "status", p.ExitStatus())
	})
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

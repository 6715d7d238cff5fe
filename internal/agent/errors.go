// ABOUTME: Error taxonomy for launching and talking to the MCP subprocess.
// ABOUTME: Launch errors are fatal to startup; protocol errors are per-request.

package agent

import "errors"

// Launch errors. Any of these aborts gateway startup.
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrImmediateExit       = errors.New("process exited immediately")
	ErrStreamUnavailable   = errors.New("process stream unavailable")
)

// Protocol errors. These fail a single query; the session stays usable
// for subsequent attempts.
var (
	ErrProcessTerminated = errors.New("mcp process has terminated")
	ErrInvalidCommand    = errors.New("command must not contain a newline")
	ErrWriteFailed       = errors.New("failed to write to mcp stdin")
	ErrFlushFailed       = errors.New("failed to flush mcp stdin")
	ErrConnClosed        = errors.New("mcp server closed connection")
	ErrEmptyResponse     = errors.New("empty response from mcp server")
	ErrReadFailed        = errors.New("failed to read response")
	ErrTimeout           = errors.New("mcp server timeout")
)

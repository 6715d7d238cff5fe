// ABOUTME: Protocol session owning exclusive access to the MCP subprocess's stdio.
// ABOUTME: A single actor goroutine serializes queries; one query in flight at a time.

package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/mcp-gateway/internal/config"
)

// lineResult is one unit produced by the stdout reader goroutine: either a
// raw line (newline included) or a terminal read error.
type lineResult struct {
	text string
	err  error
}

type queryResult struct {
	result string
	err    error
}

type sessionRequest struct {
	command string
	reply   chan queryResult
}

// Session owns the subprocess's stdin writer and stdout reader. All queries
// flow through a request channel into a single run-loop goroutine, which
// makes the at-most-one-in-flight invariant structural: a second caller
// queues behind the channel and observes the first caller's full
// request/response cycle (or its timeout) before its own bytes hit the wire.
//
// A dedicated reader goroutine owns stdout for the session's lifetime. When
// a query times out, its eventual response line is marked stale and
// discarded by a later query instead of being misattributed to it.
type Session struct {
	proc    *Process
	timeout time.Duration
	logger  *slog.Logger

	stdin *bufio.Writer
	lines chan lineResult

	requests chan sessionRequest
	closed   chan struct{}

	// run-loop state, touched only by the run goroutine
	stale   int   // responses owed to timed-out queries, to be discarded
	readErr error // terminal read classification once stdout is done

	startTime    time.Time
	requestCount atomic.Uint64
	lastActivity atomic.Int64 // unix nanos

	closeOnce sync.Once
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	PID          int           `json:"pid"`
	Uptime       time.Duration `json:"uptime"`
	Requests     uint64        `json:"requests"`
	LastActivity time.Duration `json:"last_activity"`
	Alive        bool          `json:"alive"`
}

func (s Stats) String() string {
	return fmt.Sprintf("PID: %d, Uptime: %s, Requests: %d, Last activity: %s ago",
		s.PID, s.Uptime.Round(time.Millisecond), s.Requests, s.LastActivity.Round(time.Millisecond))
}

// NewSession takes ownership of the process's stdio and starts the session
// actor. There is exactly one Session per gateway instance; it has no
// replacement path, so a dead process fails every later query until the
// gateway is restarted.
func NewSession(proc *Process, cfg *config.Config, logger *slog.Logger) *Session {
	s := &Session{
		proc:      proc,
		timeout:   cfg.Agent.ResponseTimeout,
		logger:    logger.With("component", "session", "server", proc.Name(), "pid", proc.PID()),
		stdin:     bufio.NewWriter(proc.Stdin()),
		lines:     make(chan lineResult, 8),
		requests:  make(chan sessionRequest),
		closed:    make(chan struct{}),
		startTime: time.Now(),
	}
	s.lastActivity.Store(time.Now().UnixNano())

	go s.readLines(proc.Stdout())
	go s.run()

	return s
}

// Query sends one command line to the subprocess and returns its one-line
// reply with trailing whitespace trimmed. Queries are fully serialized; ctx
// only bounds the caller's wait, it cannot cancel the wire exchange.
func (s *Session) Query(ctx context.Context, command string) (string, error) {
	req := sessionRequest{command: command, reply: make(chan queryResult, 1)}

	select {
	case s.requests <- req:
	case <-s.closed:
		return "", ErrProcessTerminated
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.result, res.err
	case <-ctx.Done():
		// The reply channel is buffered; the run loop never blocks on an
		// abandoned caller.
		return "", ctx.Err()
	}
}

// Stats returns current session counters. Safe to call concurrently with
// in-flight queries.
func (s *Session) Stats() Stats {
	return Stats{
		PID:          s.proc.PID(),
		Uptime:       time.Since(s.startTime),
		Requests:     s.requestCount.Load(),
		LastActivity: time.Since(time.Unix(0, s.lastActivity.Load())),
		Alive:        s.proc.Alive(),
	}
}

// Alive reports whether the underlying process has not exited.
func (s *Session) Alive() bool {
	return s.proc.Alive()
}

// Close stops the session actor. It does not touch the process itself;
// release that separately with Process.Close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// run is the session actor: it owns all wire state and handles one request
// at a time in arrival order.
func (s *Session) run() {
	for {
		select {
		case req := <-s.requests:
			req.reply <- s.execute(req.command)
		case <-s.closed:
			return
		}
	}
}

// execute performs one full query cycle: liveness check, write, flush, then
// a read raced against the configured timeout.
func (s *Session) execute(command string) queryResult {
	n := s.requestCount.Add(1)
	start := time.Now()
	defer func() {
		s.lastActivity.Store(time.Now().UnixNano())
	}()

	s.logger.Debug("query started", "query", n, "bytes", len(command))

	if !s.proc.Alive() {
		s.logger.Error("cannot send query: process has terminated", "query", n, "status", s.proc.ExitStatus())
		return queryResult{err: ErrProcessTerminated}
	}

	if strings.ContainsRune(command, '\n') {
		return queryResult{err: ErrInvalidCommand}
	}

	if s.readErr != nil {
		// stdout already reached EOF or failed; writing would never get an answer.
		return queryResult{err: s.readErr}
	}

	if _, err := s.stdin.WriteString(command + "\n"); err != nil {
		s.logger.Error("failed to write to stdin", "query", n, "error", err)
		return queryResult{err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
	}
	if err := s.stdin.Flush(); err != nil {
		s.logger.Error("failed to flush stdin", "query", n, "error", err)
		return queryResult{err: fmt.Errorf("%w: %v", ErrFlushFailed, err)}
	}

	res := s.awaitResponse(n)

	if res.err != nil {
		s.logger.Warn("query failed", "query", n, "elapsed", time.Since(start), "error", res.err)
	} else {
		s.logger.Info("query completed", "query", n, "elapsed", time.Since(start), "response_bytes", len(res.result))
	}
	return res
}

// awaitResponse reads the next non-stale line, racing the response timeout.
// Lines owed to previously timed-out queries are discarded here, which keeps
// a late reply from being attributed to the wrong caller.
func (s *Session) awaitResponse(n uint64) queryResult {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case lr, ok := <-s.lines:
			if !ok || lr.err != nil {
				s.readErr = classifyReadErr(lr.err)
				s.stale = 0
				return queryResult{err: s.readErr}
			}
			if s.stale > 0 {
				s.stale--
				s.logger.Warn("discarding stale response from timed-out query",
					"query", n, "stale_remaining", s.stale, "bytes", len(lr.text))
				continue
			}
			trimmed := strings.TrimSpace(lr.text)
			if trimmed == "" {
				return queryResult{err: ErrEmptyResponse}
			}
			return queryResult{result: trimmed}
		case <-timer.C:
			// The response, if it ever arrives, belongs to nobody now.
			s.stale++
			return queryResult{err: ErrTimeout}
		}
	}
}

// classifyReadErr maps a terminal reader error onto the protocol taxonomy.
func classifyReadErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return ErrConnClosed
	}
	return fmt.Errorf("%w: %v", ErrReadFailed, err)
}

// readLines owns stdout: it forwards each line to the run loop and sends one
// terminal lineResult before closing the channel. A zero-byte read (EOF)
// means the peer closed its output stream.
func (s *Session) readLines(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if line != "" {
				if !s.forward(lineResult{text: line}) {
					return
				}
			}
			if s.forward(lineResult{err: err}) {
				close(s.lines)
			}
			return
		}
		if !s.forward(lineResult{text: line}) {
			return
		}
	}
}

// forward hands a line to the run loop, giving up if the session closes
// first so the reader can never leak on shutdown.
func (s *Session) forward(lr lineResult) bool {
	select {
	case s.lines <- lr:
		return true
	case <-s.closed:
		return false
	}
}

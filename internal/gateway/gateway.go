// ABOUTME: Gateway orchestrator that bootstraps, launches, and exposes the MCP server.
// ABOUTME: Owns the HTTP server lifecycle and guarantees subprocess release on shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/mcp-gateway/internal/agent"
	"github.com/2389/mcp-gateway/internal/auth"
	"github.com/2389/mcp-gateway/internal/config"
	"github.com/2389/mcp-gateway/internal/registry"
	"github.com/2389/mcp-gateway/internal/store"
)

// Gateway wires the bootstrapped MCP subprocess to the HTTP surface.
// Exactly one session exists per gateway instance; there is no restart path
// for a dead subprocess short of restarting the gateway itself.
type Gateway struct {
	config     *config.Config
	process    *agent.Process
	session    *agent.Session
	store      store.Store // nil when no request log is configured
	httpServer *http.Server
	logger     *slog.Logger
}

// New performs the full startup sequence: resolve the named descriptor,
// bootstrap its installation, launch the process, and build the HTTP
// surface. Any failure aborts before the gateway ever listens, with the
// subprocess released on every error path.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	reg, err := registry.LoadDescriptors(cfg.Servers.ConfigFile)
	if err != nil {
		return nil, err
	}

	name := cfg.Servers.Name
	desc, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}

	setupLogger := logger.With("component", "setup")
	if err := registry.Bootstrap(ctx, name, desc, cfg, setupLogger); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	proc, err := agent.Launch(ctx, name, desc, cfg, logger.With("component", "process"))
	if err != nil {
		return nil, fmt.Errorf("launch failed: %w", err)
	}

	var st store.Store
	if cfg.Database.Path != "" {
		st, err = store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			proc.Close()
			return nil, fmt.Errorf("initializing request log: %w", err)
		}
	}

	session := agent.NewSession(proc, cfg, logger)
	return assemble(cfg, proc, session, st, logger), nil
}

// assemble builds a Gateway around an already-running session.
func assemble(cfg *config.Config, proc *agent.Process, session *agent.Session, st store.Store, logger *slog.Logger) *Gateway {
	g := &Gateway{
		config:  cfg,
		process: proc,
		session: session,
		store:   st,
		logger:  logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	// API endpoints - bearer auth when configured
	authn := auth.Middleware(cfg.Auth.APIKey, cfg.Auth.Enabled())
	mux.Handle("/api/v1", authn(http.HandlerFunc(g.handleQuery)))
	mux.Handle("/api/v1/stats", authn(http.HandlerFunc(g.handleStats)))
	mux.Handle("/api/v1/requests", authn(http.HandlerFunc(g.handleRequests)))

	g.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. It always performs a graceful shutdown, which releases the
// subprocess.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.Addr())
	if err != nil {
		g.releaseProcess()
		return fmt.Errorf("listening on %s: %w", g.config.Server.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, then releases the session, the subprocess,
// and the request log. The subprocess is killed if it has not already
// exited, so no orphan outlives the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.httpServer.Shutdown(ctx)
	g.releaseProcess()
	if g.store != nil {
		if closeErr := g.store.Close(); closeErr != nil {
			g.logger.Warn("closing request log", "error", closeErr)
		}
	}
	g.logger.Info("gateway stopped")
	return err
}

func (g *Gateway) releaseProcess() {
	if g.session != nil {
		g.session.Close()
	}
	if g.process != nil {
		g.process.Close()
	}
}

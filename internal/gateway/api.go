// ABOUTME: HTTP API handlers for querying the managed MCP server.
// ABOUTME: POST /api/v1 carries one command line and returns one result line.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/mcp-gateway/internal/agent"
	"github.com/2389/mcp-gateway/internal/store"
)

// QueryRequest is the JSON request body for POST /api/v1.
type QueryRequest struct {
	Command string `json:"command"`
}

// QueryResponse is the JSON response body for POST /api/v1.
type QueryResponse struct {
	Result string `json:"result"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	PID          int    `json:"pid"`
	Uptime       string `json:"uptime"`
	Requests     uint64 `json:"requests"`
	LastActivity string `json:"last_activity"`
	Alive        bool   `json:"alive"`
}

// RequestRecord is one entry in the GET /api/v1/requests response.
type RequestRecord struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	Outcome    string `json:"outcome"`
	ErrorClass string `json:"error_class,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// handleQuery handles POST /api/v1: decode one command, run it through the
// session, encode one result. Protocol failures are logged with full session
// state and surfaced to the caller as an opaque server error.
func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	requestID := uuid.New().String()
	start := time.Now()
	logger := g.logger.With("request_id", requestID)
	logger.Info("received query request", "bytes", len(req.Command))

	result, err := g.session.Query(r.Context(), req.Command)
	g.recordRequest(r.Context(), requestID, req.Command, err, time.Since(start))

	if err != nil {
		logger.Error("query failed",
			"elapsed", time.Since(start),
			"error", err,
			"error_class", errorClass(err),
			"stats", g.session.Stats().String(),
		)
		if errors.Is(err, agent.ErrInvalidCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("query completed", "elapsed", time.Since(start), "response_bytes", len(result))
	writeJSON(w, http.StatusOK, QueryResponse{Result: result})
}

// handleStats handles GET /api/v1/stats.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	st := g.session.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		PID:          st.PID,
		Uptime:       st.Uptime.Round(time.Millisecond).String(),
		Requests:     st.Requests,
		LastActivity: st.LastActivity.Round(time.Millisecond).String(),
		Alive:        st.Alive,
	})
}

// handleRequests handles GET /api/v1/requests?limit=N from the request log.
func (g *Gateway) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.store == nil {
		writeError(w, http.StatusNotFound, "request log not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := g.store.RecentRequests(r.Context(), limit)
	if err != nil {
		g.logger.Error("listing requests", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RequestRecord, 0, len(records))
	for _, rec := range records {
		response = append(response, RequestRecord{
			ID:         rec.ID,
			Command:    rec.Command,
			Outcome:    rec.Outcome,
			ErrorClass: rec.ErrorClass,
			DurationMS: rec.DurationMS,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// handleHealth reports liveness of the gateway itself.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness: the gateway is only useful while the
// subprocess is alive.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !g.session.Alive() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "mcp process has terminated",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// recordRequest appends one row to the request log. Logging is best-effort
// and never fails the request.
func (g *Gateway) recordRequest(ctx context.Context, id, command string, queryErr error, elapsed time.Duration) {
	if g.store == nil {
		return
	}

	rec := &store.Request{
		ID:         id,
		ServerName: g.config.Servers.Name,
		Command:    command,
		Outcome:    store.OutcomeSuccess,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if queryErr != nil {
		rec.Outcome = store.OutcomeError
		rec.ErrorClass = errorClass(queryErr)
	}

	if err := g.store.SaveRequest(ctx, rec); err != nil {
		g.logger.Warn("saving request record", "request_id", id, "error", err)
	}
}

// errorClass maps a query error onto the stable class names used in logs and
// the request log.
func errorClass(err error) string {
	switch {
	case errors.Is(err, agent.ErrProcessTerminated):
		return "process_terminated"
	case errors.Is(err, agent.ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, agent.ErrWriteFailed):
		return "write_failed"
	case errors.Is(err, agent.ErrFlushFailed):
		return "flush_failed"
	case errors.Is(err, agent.ErrConnClosed):
		return "connection_closed"
	case errors.Is(err, agent.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, agent.ErrReadFailed):
		return "read_failed"
	case errors.Is(err, agent.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

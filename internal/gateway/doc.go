// Package gateway is the HTTP-facing layer of mcp-gateway.
//
// # Startup
//
// New runs the whole startup sequence in order: descriptor lookup,
// bootstrap (fetch/install/verify), process launch, session creation. Any
// failure aborts before the HTTP server ever listens — no partially-working
// gateway is exposed.
//
// # HTTP API
//
//   - POST /api/v1           - one command line in, one result line out
//   - GET  /api/v1/stats     - session counters (pid, uptime, request count)
//   - GET  /api/v1/requests  - recent entries from the request log
//   - GET  /health           - gateway liveness
//   - GET  /health/ready     - readiness (subprocess still alive)
//
// API endpoints are gated by the bearer API-key middleware when a key is
// configured. Protocol failures surface as opaque 500s; the details go to
// the log and the request log, not to the caller.
package gateway

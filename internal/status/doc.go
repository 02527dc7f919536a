// Package status serves the client's state to local renderers.
//
// Endpoints:
//   - GET /health         liveness, version and dependency checks
//   - GET /api/v1/state   latest view as JSON
//   - GET /ws             view stream, one text frame per update
//   - GET /metrics        Prometheus metrics (when enabled)
//
// The surface is read-only. Commands go through the game client API.
package status

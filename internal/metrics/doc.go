// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Inbound event rates and protocol error counts
//   - Outbound commands sent and refused
//   - Session liveness (connected, engine alive) and reconnect attempts
//   - Auto-cashout fires and server rejections
//   - Audit writer batch sizes and failures
//
// A nil *Metrics is valid and records nothing.
package metrics

// Package loop implements the single-consumer event loop.
//
// Every mutation of client state runs as a task on one goroutine:
//   - socket pumps post inbound frames in arrival order
//   - timers (reconnect backoff, disconnect grace) post their callbacks
//   - public API calls are marshalled in with Call
//
// Once the loop stops, pending tasks are discarded and stopped timers never
// run their callbacks.
package loop

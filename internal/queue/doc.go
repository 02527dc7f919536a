// Package queue provides an unbounded FIFO buffer shared by the event loop and
// the audit writers.
//
// Inbound protocol events must never be dropped or reordered, so producers
// (socket pumps, timers, API callers) append without blocking and a single
// consumer drains in arrival order.
package queue

// Package round interprets round lifecycle events into the three-phase cycle
// BETTING -> RUNNING -> CRASHED -> BETTING.
//
// A Round is replaced wholesale on every round start. Out-of-phase input is
// rejected with a *protocol.ProtocolError and leaves the machine unchanged.
package round

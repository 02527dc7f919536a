// Package game wires the session, round machine, bet tracker, auto-cashout
// monitor and live feed into one client.
//
// Every state change happens on a single event loop. Inbound frames are
// decoded and routed there in arrival order, and the public methods of
// Client marshal onto the same loop and wait for the answer, so no caller
// ever blocks on the network. Readers observe state through immutable View
// snapshots, either polled with Snapshot or pushed through Subscribe.
package game

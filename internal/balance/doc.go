// Package balance supplies the available wallet balance used for local stake
// validation.
//
// The Tracker holds the last known figure. Balances pushed by the game server
// (bet_accepted, cashout_success, auto_cashout_triggered) are applied
// directly; a REST refresh runs out-of-band on an interval and after
// settlement events. The last value is mirrored to Redis so a restarted
// client can validate stakes before the first refresh completes.
package balance

// Package bet tracks the user's own wager through its lifecycle:
//
//	NONE --place--> PENDING --bet_accepted--> ACTIVE --cashout--> CASHED_OUT
//	                PENDING --bet_failed----> NONE    --crash---> CRASHED_OUT
//
// Local preconditions are checked before any command leaves the process; a
// failed check is a *ValidationError and has no network effect. Edges not in
// the diagram are ignored.
package bet

// Package protocol defines the crash-game push protocol.
//
// Frames are UTF-8 JSON envelopes of the form {"event"|"type": name, "data": {...}}.
// Some servers flatten the payload into the envelope itself; both shapes decode.
// Decimal values (multipliers, payouts, balances) may arrive as JSON numbers or
// as decimal strings such as "2.50".
package protocol

// Package writer batch-writes the audit trail to Postgres.
//
// Writers:
//   - Round writer (rounds table, one row per observed crash)
//   - Bet writer (bets table, one row per settled own bet)
//
// Rows are produced on the event loop and handed over through unbounded
// queues, so recording never blocks the game. All writers are append-only
// and use ON CONFLICT DO NOTHING, which makes replays after a reconnect safe.
package writer

package writer

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/crashline/internal/queue"
)

const betsTable = "bets"

// BetRecord is one settled own bet.
type BetRecord struct {
	InstanceID      string
	BetID           string
	RoundID         string
	ClientRequestID string
	Amount          float64
	AutoCashout     *float64
	Outcome         string // CASHED_OUT or CRASHED_OUT
	Multiplier      float64
	Payout          float64
	AutoSettled     bool
	PlacedAt        time.Time
	SettledAt       time.Time
}

// BetWriter writes BetRecords to the bets table.
type BetWriter struct {
	*batchWriter[BetRecord]
}

// NewBetWriter creates a BetWriter.
func NewBetWriter(cfg WriterConfig, input *queue.Buffer[BetRecord], db DB, observer Observer, logger *slog.Logger) *BetWriter {
	return &BetWriter{newBatchWriter(betsTable, cfg, input, db, queueBet, observer, logger)}
}

func queueBet(b *pgx.Batch, r BetRecord) {
	b.Queue(`
		INSERT INTO bets (instance_id, bet_id, round_id, client_request_id, amount, auto_cashout,
			outcome, multiplier, payout, auto_settled, placed_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (instance_id, bet_id) DO NOTHING
	`, r.InstanceID, r.BetID, r.RoundID, r.ClientRequestID, r.Amount, r.AutoCashout,
		r.Outcome, r.Multiplier, r.Payout, r.AutoSettled, r.PlacedAt, r.SettledAt)
}

package writer

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/crashline/internal/queue"
)

const roundsTable = "rounds"

// RoundRecord is one crashed round.
type RoundRecord struct {
	InstanceID string
	RoundID    string
	CrashPoint float64
	StartedAt  time.Time // zero when the start was not observed
	CrashedAt  time.Time
}

// RoundWriter writes RoundRecords to the rounds table.
type RoundWriter struct {
	*batchWriter[RoundRecord]
}

// NewRoundWriter creates a RoundWriter.
func NewRoundWriter(cfg WriterConfig, input *queue.Buffer[RoundRecord], db DB, observer Observer, logger *slog.Logger) *RoundWriter {
	return &RoundWriter{newBatchWriter(roundsTable, cfg, input, db, queueRound, observer, logger)}
}

func queueRound(b *pgx.Batch, r RoundRecord) {
	b.Queue(`
		INSERT INTO rounds (instance_id, round_id, crash_point, started_at, crashed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_id, round_id) DO NOTHING
	`, r.InstanceID, r.RoundID, r.CrashPoint, nullTime(r.StartedAt), r.CrashedAt)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package writer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/queue"
	"github.com/rickgao/crashline/internal/round"
)

// Audit owns the round and bet writers and the queues feeding them.
// RecordRound and RecordBet are safe to call from the event loop; they
// never block.
type Audit struct {
	instanceID string
	logger     *slog.Logger

	rounds *queue.Buffer[RoundRecord]
	bets   *queue.Buffer[BetRecord]

	roundWriter *RoundWriter
	betWriter   *BetWriter
}

// AuditConfig configures an Audit.
type AuditConfig struct {
	InstanceID string
	Writer     WriterConfig
	BufferSize int
}

// NewAudit creates an Audit writing through db.
func NewAudit(cfg AuditConfig, db DB, observer Observer, logger *slog.Logger) *Audit {
	if logger == nil {
		logger = slog.Default()
	}
	rounds := queue.New[RoundRecord](cfg.BufferSize)
	bets := queue.New[BetRecord](cfg.BufferSize)
	return &Audit{
		instanceID:  cfg.InstanceID,
		logger:      logger.With("component", "audit"),
		rounds:      rounds,
		bets:        bets,
		roundWriter: NewRoundWriter(cfg.Writer, rounds, db, observer, logger),
		betWriter:   NewBetWriter(cfg.Writer, bets, db, observer, logger),
	}
}

// Start starts both writers.
func (a *Audit) Start(ctx context.Context) error {
	if err := a.roundWriter.Start(ctx); err != nil {
		return err
	}
	return a.betWriter.Start(ctx)
}

// Stop closes the queues and flushes what is left.
func (a *Audit) Stop(ctx context.Context) error {
	a.rounds.Close()
	a.bets.Close()
	return errors.Join(a.roundWriter.Stop(ctx), a.betWriter.Stop(ctx))
}

// RecordRound queues a crashed round. Rounds that have not crashed are ignored.
func (a *Audit) RecordRound(r round.Round) {
	if !r.Crashed() || r.ID == "" {
		return
	}
	if !a.rounds.Send(RoundRecord{
		InstanceID: a.instanceID,
		RoundID:    r.ID,
		CrashPoint: r.CrashPoint,
		StartedAt:  r.StartedAt,
		CrashedAt:  r.CrashedAt,
	}) {
		a.logger.Debug("round dropped after stop", "round_id", r.ID)
	}
}

// RecordBet queues a settled bet. Bets that are not terminal are ignored.
func (a *Audit) RecordBet(b bet.Bet) {
	if !b.State.Terminal() || b.ID == "" {
		return
	}
	if !a.bets.Send(BetRecord{
		InstanceID:      a.instanceID,
		BetID:           b.ID,
		RoundID:         b.RoundID,
		ClientRequestID: b.ClientRequestID,
		Amount:          b.Amount,
		AutoCashout:     b.AutoCashout,
		Outcome:         string(b.State),
		Multiplier:      b.Multiplier,
		Payout:          b.Payout,
		AutoSettled:     b.AutoSettled,
		PlacedAt:        b.PlacedAt,
		SettledAt:       b.SettledAt,
	}) {
		a.logger.Debug("bet dropped after stop", "bet_id", b.ID)
	}
}

// Stats returns per-table writer metrics.
func (a *Audit) Stats() map[string]WriterMetrics {
	return map[string]WriterMetrics{
		roundsTable: a.roundWriter.Stats(),
		betsTable:   a.betWriter.Stats(),
	}
}

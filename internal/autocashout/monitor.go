// Package autocashout fires a cashout when the live multiplier crosses the
// active bet's declared threshold.
package autocashout

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/crashline/internal/bet"
)

// DefaultCooldown suppresses re-firing while a cashout is in flight.
const DefaultCooldown = bet.DefaultCashoutCooldown

// Target is the bet the monitor watches and the command surface it fires through.
type Target interface {
	Bet() bet.Bet
	CashOut(multiplier float64) error
}

// Monitor is evaluated on every multiplier tick. Not safe for concurrent use.
type Monitor struct {
	target   Target
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	firedFor  string // bet id of the last fire
	firedAt   time.Time
	fireCount int
}

// New creates a Monitor. A zero cooldown uses DefaultCooldown.
func New(target Target, cooldown time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Monitor{
		target:   target,
		cooldown: cooldown,
		logger:   logger.With("component", "autocashout"),
		now:      time.Now,
	}
}

// OnMultiplier checks one tick and returns true if a cashout was sent.
//
// The cooldown is a deadline rather than a timer so nothing outlives the
// monitor. Once it lapses with the bet still ACTIVE the cashout is retried.
func (m *Monitor) OnMultiplier(multiplier float64) bool {
	b := m.target.Bet()
	if b.State != bet.StateActive || b.AutoCashout == nil {
		return false
	}
	if multiplier < *b.AutoCashout {
		return false
	}

	now := m.now()
	if b.ID == m.firedFor && now.Sub(m.firedAt) < m.cooldown {
		return false
	}

	if err := m.target.CashOut(multiplier); err != nil {
		if errors.Is(err, bet.ErrCashoutInFlight) {
			// A manual cashout for this bet is already awaiting its reply.
			m.logger.Debug("auto-cashout skipped, cashout in flight", "bet_id", b.ID)
			return false
		}
		m.logger.Warn("auto-cashout not sent",
			"bet_id", b.ID,
			"multiplier", multiplier,
			"error", err,
		)
		return false
	}

	m.firedFor = b.ID
	m.firedAt = now
	m.fireCount++

	m.logger.Info("auto-cashout fired",
		"bet_id", b.ID,
		"threshold", *b.AutoCashout,
		"multiplier", multiplier,
	)
	return true
}

// Cooling reports whether a fire is awaiting acknowledgement.
func (m *Monitor) Cooling() bool {
	return m.firedFor != "" && m.now().Sub(m.firedAt) < m.cooldown
}

// Fired returns how many cashouts the monitor has sent.
func (m *Monitor) Fired() int {
	return m.fireCount
}

// Reset forgets any in-flight fire.
func (m *Monitor) Reset() {
	m.firedFor = ""
	m.firedAt = time.Time{}
}

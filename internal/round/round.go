package round

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rickgao/crashline/internal/protocol"
)

// Phase is the lifecycle phase of a round.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseBetting Phase = "BETTING"
	PhaseRunning Phase = "RUNNING"
	PhaseCrashed Phase = "CRASHED"
)

const (
	// DefaultHistoryCap is the default number of crash points retained.
	DefaultHistoryCap = 50

	baseMultiplier = 1.0
)

// Errors
var (
	ErrNoRound      = errors.New("no round in progress")
	ErrWrongPhase   = errors.New("event not valid in current phase")
	ErrNonMonotonic = errors.New("multiplier moved backwards")
	ErrInvalidValue = errors.New("non-finite or out-of-range value")
)

// Round is one play of the game.
type Round struct {
	ID                string    `json:"id"`
	Phase             Phase     `json:"phase"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	CrashPoint        float64   `json:"crash_point,omitempty"` // zero unless Phase == PhaseCrashed
	StartedAt         time.Time `json:"started_at"`
	LockedAt          time.Time `json:"locked_at,omitzero"`
	CrashedAt         time.Time `json:"crashed_at,omitzero"`
}

// Crashed reports whether CrashPoint is meaningful.
func (r Round) Crashed() bool {
	return r.Phase == PhaseCrashed
}

// Machine owns the current round and the crash history. It is not safe for
// concurrent use; all calls happen on the event loop.
type Machine struct {
	logger     *slog.Logger
	now        func() time.Time
	historyCap int

	round   *Round
	history []float64 // newest first
}

// NewMachine creates a Machine retaining up to historyCap crash points.
func NewMachine(historyCap int, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if historyCap < 1 {
		historyCap = DefaultHistoryCap
	}
	return &Machine{
		logger:     logger,
		now:        time.Now,
		historyCap: historyCap,
		history:    make([]float64, 0, historyCap),
	}
}

// Start replaces the current round with a fresh one in the betting phase.
// It is accepted from any phase: a start after a missed crash (for example
// across a reconnect) resynchronises the machine.
func (m *Machine) Start(id string) Round {
	if m.round != nil && m.round.Phase != PhaseCrashed {
		m.logger.Warn("round replaced before crash",
			"previous_round", m.round.ID,
			"previous_phase", m.round.Phase,
			"round_id", id,
		)
	}

	m.round = &Round{
		ID:                id,
		Phase:             PhaseBetting,
		CurrentMultiplier: baseMultiplier,
		StartedAt:         m.now(),
	}

	m.logger.Debug("round started", "round_id", id)
	return *m.round
}

// LockBets moves BETTING -> RUNNING.
func (m *Machine) LockBets() error {
	if err := m.expect(protocol.EventRoundLockBets, PhaseBetting); err != nil {
		return err
	}
	m.round.Phase = PhaseRunning
	m.round.LockedAt = m.now()
	return nil
}

// Update applies a multiplier tick. Ticks outside RUNNING, non-finite values,
// values below 1.0 and values lower than the current multiplier are rejected
// without touching state.
func (m *Machine) Update(multiplier float64) error {
	if err := m.expect(protocol.EventMultiplierUpdate, PhaseRunning); err != nil {
		return err
	}
	if !valid(multiplier) {
		return m.reject(protocol.EventMultiplierUpdate, ErrInvalidValue, "multiplier", multiplier)
	}
	if multiplier < m.round.CurrentMultiplier {
		return m.reject(protocol.EventMultiplierUpdate, ErrNonMonotonic, "multiplier", multiplier)
	}
	m.round.CurrentMultiplier = multiplier
	return nil
}

// Crash moves RUNNING -> CRASHED and records the crash point.
func (m *Machine) Crash(point float64) error {
	if err := m.expect(protocol.EventRoundCrash, PhaseRunning); err != nil {
		return err
	}
	if !valid(point) {
		return m.reject(protocol.EventRoundCrash, ErrInvalidValue, "crash_point", point)
	}

	m.round.Phase = PhaseCrashed
	m.round.CrashPoint = point
	m.round.CurrentMultiplier = point
	m.round.CrashedAt = m.now()
	m.pushHistory(point)
	return nil
}

// Current returns a copy of the current round and whether one exists.
func (m *Machine) Current() (Round, bool) {
	if m.round == nil {
		return Round{}, false
	}
	return *m.round, true
}

// Phase returns the current phase, PhaseNone before the first round start.
func (m *Machine) Phase() Phase {
	if m.round == nil {
		return PhaseNone
	}
	return m.round.Phase
}

// Multiplier returns the current multiplier (1.0 before any round).
func (m *Machine) Multiplier() float64 {
	if m.round == nil {
		return baseMultiplier
	}
	return m.round.CurrentMultiplier
}

// History returns crash points, newest first.
func (m *Machine) History() []float64 {
	out := make([]float64, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Machine) pushHistory(point float64) {
	if len(m.history) < m.historyCap {
		m.history = append(m.history, 0)
	}
	copy(m.history[1:], m.history[:len(m.history)-1])
	m.history[0] = point
}

func (m *Machine) expect(event string, phase Phase) error {
	if m.round == nil {
		return &protocol.ProtocolError{Event: event, Err: ErrNoRound}
	}
	if m.round.Phase != phase {
		return &protocol.ProtocolError{
			Event: event,
			Err:   fmt.Errorf("%w: phase %s, want %s", ErrWrongPhase, m.round.Phase, phase),
		}
	}
	return nil
}

func (m *Machine) reject(event string, err error, field string, value float64) error {
	return &protocol.ProtocolError{Event: event, Err: fmt.Errorf("%w: %s=%v", err, field, value)}
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= baseMultiplier && v <= protocol.MaxMultiplier
}

package bet

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/crashline/internal/protocol"
	"github.com/rickgao/crashline/internal/round"
)

// State is the lifecycle state of a bet.
type State string

const (
	StateNone       State = "NONE"
	StatePending    State = "PENDING"
	StateActive     State = "ACTIVE"
	StateCashedOut  State = "CASHED_OUT"
	StateCrashedOut State = "CRASHED_OUT"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCashedOut || s == StateCrashedOut
}

// Bet is the client-side view of the user's wager.
type Bet struct {
	ID              string    `json:"id,omitempty"` // server-assigned on acceptance
	ClientRequestID string    `json:"client_request_id,omitempty"`
	Amount          float64   `json:"amount"`
	AutoCashout     *float64  `json:"auto_cashout,omitempty"`
	State           State     `json:"state"`
	Payout          float64   `json:"payout"`
	Multiplier      float64   `json:"multiplier,omitempty"`
	AutoSettled     bool      `json:"auto_settled,omitempty"`
	RoundID         string    `json:"round_id,omitempty"`
	PlacedAt        time.Time `json:"placed_at,omitempty"`
	SettledAt       time.Time `json:"settled_at,omitempty"`

	// CashoutSentAt is set while a cashout for this bet awaits its reply.
	CashoutSentAt time.Time `json:"cashout_sent_at,omitzero"`
}

// Live reports whether the bet is PENDING or ACTIVE.
func (b Bet) Live() bool {
	return b.State == StatePending || b.State == StateActive
}

// Dispatcher sends a command without blocking. False means it was not sent.
type Dispatcher interface {
	Dispatch(cmd protocol.Command) bool
}

// Environment exposes the state of the other components that bet
// preconditions depend on.
type Environment interface {
	Phase() round.Phase
	RoundID() string
	Connected() bool
}

// Balance supplies the available balance. ok is false when unknown.
type Balance interface {
	Available() (amount float64, ok bool)
}

// DefaultCashoutCooldown is how long a sent cashout blocks another one for
// the same bet when no reply arrives.
const DefaultCashoutCooldown = 400 * time.Millisecond

// Config holds stake limits and submission throttling.
type Config struct {
	MinStake          float64
	MaxStake          float64 // 0 = unlimited
	SubmitInterval    time.Duration
	CashoutCooldown   time.Duration
	DeviceFingerprint string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinStake:        1,
		SubmitInterval:  time.Second,
		CashoutCooldown: DefaultCashoutCooldown,
	}
}

// Tracker owns the single bet of a session. Not safe for concurrent use.
type Tracker struct {
	cfg        Config
	dispatcher Dispatcher
	env        Environment
	balance    Balance
	logger     *slog.Logger
	now        func() time.Time

	bet        Bet
	lastSubmit time.Time
}

// NewTracker creates a Tracker. balance may be nil.
func NewTracker(cfg Config, d Dispatcher, env Environment, balance Balance, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CashoutCooldown <= 0 {
		cfg.CashoutCooldown = DefaultCashoutCooldown
	}
	return &Tracker{
		cfg:        cfg,
		dispatcher: d,
		env:        env,
		balance:    balance,
		logger:     logger,
		now:        time.Now,
		bet:        Bet{State: StateNone},
	}
}

// Bet returns a copy of the current bet.
func (t *Tracker) Bet() Bet {
	b := t.bet
	if b.AutoCashout != nil {
		v := *b.AutoCashout
		b.AutoCashout = &v
	}
	return b
}

// PlaceBet validates and submits a wager for the current betting window.
func (t *Tracker) PlaceBet(amount float64, autoCashout *float64) error {
	const op = protocol.CmdPlaceBet

	if !finite(amount) || amount <= 0 {
		return invalid(op, ErrInvalidAmount)
	}
	if amount < t.cfg.MinStake {
		return invalid(op, ErrBelowMinStake)
	}
	if t.cfg.MaxStake > 0 && amount > t.cfg.MaxStake {
		return invalid(op, ErrAboveMaxStake)
	}
	if autoCashout != nil && (!finite(*autoCashout) || *autoCashout <= 1 || *autoCashout > protocol.MaxMultiplier) {
		return invalid(op, ErrInvalidThreshold)
	}
	if t.bet.Live() {
		return invalid(op, ErrBetInProgress)
	}
	if t.env.Phase() != round.PhaseBetting {
		return invalid(op, ErrBettingClosed)
	}
	if !t.env.Connected() {
		return invalid(op, ErrNotConnected)
	}
	if t.balance != nil {
		if avail, ok := t.balance.Available(); ok && amount > avail {
			return invalid(op, ErrInsufficientBalance)
		}
	}

	now := t.now()
	if !t.lastSubmit.IsZero() && now.Sub(t.lastSubmit) < t.cfg.SubmitInterval {
		return invalid(op, ErrThrottled)
	}
	t.lastSubmit = now

	var threshold *float64
	if autoCashout != nil {
		v := *autoCashout
		threshold = &v
	}

	cmd := protocol.PlaceBet{
		Amount:            amount,
		AutoCashout:       threshold,
		DeviceFingerprint: t.cfg.DeviceFingerprint,
		ClientRequestID:   uuid.NewString(),
	}
	if !t.dispatcher.Dispatch(cmd) {
		return ErrSendFailed
	}

	t.bet = Bet{
		ClientRequestID: cmd.ClientRequestID,
		Amount:          amount,
		AutoCashout:     threshold,
		State:           StatePending,
		PlacedAt:        now,
	}

	t.logger.Info("bet submitted",
		"client_request_id", cmd.ClientRequestID,
		"amount", amount,
		"auto_cashout", thresholdValue(threshold),
	)
	return nil
}

// CashOut requests settlement of the active bet at multiplier. Manual and
// automatic cashouts share this path, so at most one is in flight per bet
// until the server replies or the cooldown lapses.
func (t *Tracker) CashOut(multiplier float64) error {
	const op = protocol.CmdCashout

	if t.bet.State != StateActive {
		return invalid(op, ErrNoActiveBet)
	}
	if t.env.Phase() != round.PhaseRunning {
		return invalid(op, ErrNotRunning)
	}
	now := t.now()
	if t.CashoutInFlight() {
		return invalid(op, ErrCashoutInFlight)
	}
	if !t.dispatcher.Dispatch(protocol.Cashout{BetID: t.bet.ID, Multiplier: multiplier}) {
		return ErrSendFailed
	}
	t.bet.CashoutSentAt = now

	t.logger.Info("cashout requested", "bet_id", t.bet.ID, "multiplier", multiplier)
	return nil
}

// CashoutInFlight reports whether a cashout for the current bet was sent
// less than one cooldown ago and has not been answered.
func (t *Tracker) CashoutInFlight() bool {
	if t.bet.CashoutSentAt.IsZero() {
		return false
	}
	return t.now().Sub(t.bet.CashoutSentAt) < t.cfg.CashoutCooldown
}

// CancelAutoCashout asks the server to drop the threshold. The local
// threshold is cleared only when the server acknowledges.
func (t *Tracker) CancelAutoCashout() error {
	const op = protocol.CmdCancelAutoCashout

	if t.bet.State != StateActive {
		return invalid(op, ErrNoActiveBet)
	}
	if t.bet.AutoCashout == nil {
		return invalid(op, ErrNoAutoCashout)
	}
	if !t.dispatcher.Dispatch(protocol.CancelAutoCashout{BetID: t.bet.ID}) {
		return ErrSendFailed
	}
	return nil
}

// OnAccepted handles bet_accepted: PENDING -> ACTIVE.
func (t *Tracker) OnAccepted(ev protocol.BetAccepted) bool {
	if t.bet.State != StatePending {
		t.logger.Warn("bet_accepted without pending bet", "bet_id", ev.BetID, "state", t.bet.State)
		return false
	}

	roundID := ev.RoundID
	if roundID == "" {
		roundID = t.env.RoundID()
	}
	t.bet.ID = ev.BetID
	t.bet.RoundID = roundID
	t.bet.State = StateActive

	t.logger.Info("bet accepted", "bet_id", ev.BetID, "round_id", roundID)
	return true
}

// OnFailed handles bet_failed: PENDING -> NONE.
func (t *Tracker) OnFailed(ev protocol.BetFailed) *ServerRejection {
	if t.bet.State == StatePending {
		t.bet = Bet{State: StateNone}
	}
	return &ServerRejection{Event: protocol.EventBetFailed, Message: ev.Error}
}

// OnSettled handles cashout_success and auto_cashout_triggered:
// ACTIVE -> CASHED_OUT. Settlements for other bet ids are ignored.
func (t *Tracker) OnSettled(betID string, multiplier, payout float64, auto bool) bool {
	if t.bet.State != StateActive {
		return false
	}
	if betID != "" && betID != t.bet.ID {
		t.logger.Warn("settlement for unknown bet", "bet_id", betID, "active_bet_id", t.bet.ID)
		return false
	}

	t.bet.State = StateCashedOut
	t.bet.Multiplier = multiplier
	t.bet.Payout = payout
	t.bet.AutoSettled = auto
	t.bet.SettledAt = t.now()

	t.logger.Info("bet cashed out",
		"bet_id", t.bet.ID,
		"multiplier", multiplier,
		"payout", payout,
		"auto", auto,
	)
	return true
}

// OnCrashed handles bet_crashed: ACTIVE -> CRASHED_OUT with zero payout.
func (t *Tracker) OnCrashed(ev protocol.BetCrashed) bool {
	if t.bet.State != StateActive {
		return false
	}

	t.bet.State = StateCrashedOut
	t.bet.Payout = 0
	t.bet.Multiplier = ev.CrashMultiplier
	t.bet.SettledAt = t.now()

	t.logger.Info("bet lost", "bet_id", t.bet.ID, "crash_multiplier", ev.CrashMultiplier)
	return true
}

// OnAutoCashoutCancelled clears the local threshold.
func (t *Tracker) OnAutoCashoutCancelled() bool {
	if !t.bet.Live() || t.bet.AutoCashout == nil {
		return false
	}
	t.bet.AutoCashout = nil
	return true
}

// OnCashoutFailed handles cashout_failed. The bet stays ACTIVE and may be
// cashed out again.
func (t *Tracker) OnCashoutFailed(ev protocol.CashoutFailed) *ServerRejection {
	t.bet.CashoutSentAt = time.Time{}
	return &ServerRejection{Event: protocol.EventCashoutFailed, Message: ev.Error}
}

// OnCancelAutoCashoutFailed handles cancel_auto_cashout_failed. State is unchanged.
func (t *Tracker) OnCancelAutoCashoutFailed(ev protocol.CancelAutoCashoutFailed) *ServerRejection {
	return &ServerRejection{Event: protocol.EventCancelAutoCashoutFailed, Message: ev.Error}
}

// OnRoundStart drops a bet bound to an earlier round. A PENDING bet has no
// round yet and is kept. Returns true if a bet was invalidated.
func (t *Tracker) OnRoundStart(roundID string) bool {
	t.bet.CashoutSentAt = time.Time{}
	switch t.bet.State {
	case StateActive, StateCashedOut, StateCrashedOut:
		if t.bet.RoundID == roundID {
			return false
		}
		if t.bet.State == StateActive {
			t.logger.Warn("active bet invalidated by new round",
				"bet_id", t.bet.ID,
				"bet_round_id", t.bet.RoundID,
				"round_id", roundID,
			)
		}
		t.bet = Bet{State: StateNone}
		return true
	}
	return false
}

// thresholdValue unwraps an optional threshold for logging.
func thresholdValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Inbound event names.
const (
	EventConnected               = "connected"
	EventRoundStart              = "round_start"
	EventRoundCountdown          = "round_countdown"
	EventRoundLockBets           = "round_lock_bets"
	EventMultiplierUpdate        = "multiplier_update"
	EventRoundCrash              = "round_crash"
	EventPlayerBet               = "player_bet"
	EventPlayerCashout           = "player_cashout"
	EventBetAccepted             = "bet_accepted"
	EventBetFailed               = "bet_failed"
	EventCashoutSuccess          = "cashout_success"
	EventCashoutFailed           = "cashout_failed"
	EventAutoCashoutTriggered    = "auto_cashout_triggered"
	EventBetCrashed              = "bet_crashed"
	EventAutoCashoutCancelled    = "auto_cashout_cancelled"
	EventCancelAutoCashoutFailed = "cancel_auto_cashout_failed"
)

// Outbound command names.
const (
	CmdPlaceBet          = "place_bet"
	CmdCashout           = "cashout"
	CmdCancelAutoCashout = "cancel_auto_cashout"
)

// MaxMultiplier bounds accepted multiplier values.
const MaxMultiplier = 1_000_000.0

// Errors
var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingField = errors.New("missing required field")
	ErrOutOfRange   = errors.New("value out of range")
)

// ProtocolError reports a malformed or out-of-phase payload. Consumers log and
// discard it; it never changes client state.
type ProtocolError struct {
	Event string
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error (%s): %v", e.Event, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Event is a decoded inbound event.
type Event interface {
	EventName() string
}

// Connected confirms the handshake.
type Connected struct {
	Mode string
}

// RoundStart opens a new round in the betting phase.
type RoundStart struct {
	RoundID string
}

// RoundCountdown is informational: seconds left in the betting window.
type RoundCountdown struct {
	Seconds int
}

// RoundLockBets closes betting and starts the multiplier.
type RoundLockBets struct{}

// MultiplierUpdate carries the current multiplier while running.
type MultiplierUpdate struct {
	Multiplier float64
}

// RoundCrash ends the round.
type RoundCrash struct {
	CrashPoint float64
}

// PlayerBet announces another participant's wager.
type PlayerBet struct {
	BetID  string
	User   string
	Amount float64
}

// PlayerCashout announces another participant's cashout.
type PlayerCashout struct {
	BetID       string
	Multiplier  float64
	Payout      float64
	CashoutType string // "manual" or "auto"
}

// BetAccepted acknowledges our place_bet.
type BetAccepted struct {
	BetID   string
	RoundID string
	Balance *float64
}

// BetFailed rejects our place_bet.
type BetFailed struct {
	Error string
}

// CashoutSuccess settles our manual cashout.
type CashoutSuccess struct {
	BetID      string
	Multiplier float64
	Payout     float64
	Balance    *float64
}

// CashoutFailed rejects our cashout.
type CashoutFailed struct {
	Error string
}

// AutoCashoutTriggered settles our bet at its auto-cashout threshold.
type AutoCashoutTriggered struct {
	BetID      string
	Multiplier float64
	Payout     float64
	Balance    *float64
}

// BetCrashed reports that the round ended while our bet was still active.
type BetCrashed struct {
	CrashMultiplier float64
	LostAmount      float64
}

// AutoCashoutCancelled acknowledges cancel_auto_cashout.
type AutoCashoutCancelled struct{}

// CancelAutoCashoutFailed rejects cancel_auto_cashout.
type CancelAutoCashoutFailed struct {
	Error string
}

func (Connected) EventName() string               { return EventConnected }
func (RoundStart) EventName() string              { return EventRoundStart }
func (RoundCountdown) EventName() string          { return EventRoundCountdown }
func (RoundLockBets) EventName() string           { return EventRoundLockBets }
func (MultiplierUpdate) EventName() string        { return EventMultiplierUpdate }
func (RoundCrash) EventName() string              { return EventRoundCrash }
func (PlayerBet) EventName() string               { return EventPlayerBet }
func (PlayerCashout) EventName() string           { return EventPlayerCashout }
func (BetAccepted) EventName() string             { return EventBetAccepted }
func (BetFailed) EventName() string               { return EventBetFailed }
func (CashoutSuccess) EventName() string          { return EventCashoutSuccess }
func (CashoutFailed) EventName() string           { return EventCashoutFailed }
func (AutoCashoutTriggered) EventName() string    { return EventAutoCashoutTriggered }
func (BetCrashed) EventName() string              { return EventBetCrashed }
func (AutoCashoutCancelled) EventName() string    { return EventAutoCashoutCancelled }
func (CancelAutoCashoutFailed) EventName() string { return EventCancelAutoCashoutFailed }

// Command is an outbound command.
type Command interface {
	CommandName() string
}

// PlaceBet submits a wager for the current betting window.
type PlaceBet struct {
	Amount            float64  `json:"amount"`
	AutoCashout       *float64 `json:"auto_cashout"`
	DeviceFingerprint string   `json:"device_fingerprint"`
	ClientRequestID   string   `json:"client_request_id,omitempty"`
}

// Cashout requests settlement of an active bet at the given multiplier.
type Cashout struct {
	BetID      string  `json:"bet_id"`
	Multiplier float64 `json:"multiplier"`
}

// CancelAutoCashout removes the auto-cashout threshold of an active bet.
type CancelAutoCashout struct {
	BetID string `json:"bet_id"`
}

func (PlaceBet) CommandName() string          { return CmdPlaceBet }
func (Cashout) CommandName() string           { return CmdCashout }
func (CancelAutoCashout) CommandName() string { return CmdCancelAutoCashout }

// Wire types for JSON parsing

// envelope is used for fast name extraction.
type envelope struct {
	Event string          `json:"event"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// outboundEnvelope is the wire format for commands.
type outboundEnvelope struct {
	Type string  `json:"type"`
	Data Command `json:"data"`
}

// Number accepts a JSON number or a decimal string.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	n.Value = v
	n.Set = true
	return nil
}

// finite reports whether the number is set and neither NaN nor Inf.
func (n Number) finite() bool {
	return n.Set && !math.IsNaN(n.Value) && !math.IsInf(n.Value, 0)
}

// ptr returns nil for unset numbers.
func (n Number) ptr() *float64 {
	if !n.finite() {
		return nil
	}
	v := n.Value
	return &v
}

// ID accepts a JSON string or number and keeps its textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("parse id %q: %w", s, err)
	}
	*id = ID(s)
	return nil
}

type connectedWire struct {
	Mode string `json:"mode"`
}

type roundStartWire struct {
	RoundID ID `json:"round_id"`
}

type roundCountdownWire struct {
	Seconds Number `json:"seconds"`
}

type multiplierUpdateWire struct {
	Multiplier Number `json:"multiplier"`
}

type roundCrashWire struct {
	CrashPoint Number `json:"crash_point"`
}

type playerBetWire struct {
	BetID  ID     `json:"bet_id"`
	User   string `json:"user"`
	Amount Number `json:"amount"`
}

type playerCashoutWire struct {
	BetID       ID     `json:"bet_id"`
	Multiplier  Number `json:"multiplier"`
	Payout      Number `json:"payout"`
	CashoutType string `json:"cashout_type"`
}

type betAcceptedWire struct {
	BetID   ID     `json:"bet_id"`
	RoundID ID     `json:"round_id"`
	Balance Number `json:"balance"`
}

type settlementWire struct {
	BetID      ID     `json:"bet_id"`
	Multiplier Number `json:"multiplier"`
	Payout     Number `json:"payout"`
	Balance    Number `json:"balance"`
}

type betCrashedWire struct {
	CrashMultiplier Number `json:"crash_multiplier"`
	LostAmount      Number `json:"lost_amount"`
}

type errorWire struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (w errorWire) text() string {
	if w.Error != "" {
		return w.Error
	}
	if w.Message != "" {
		return w.Message
	}
	return "request rejected"
}

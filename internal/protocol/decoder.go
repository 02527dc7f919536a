package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Decoder parses raw frames into typed events and keeps parse statistics.
type Decoder struct {
	logger *slog.Logger

	mu          sync.RWMutex
	received    int64
	decoded     int64
	parseErrors int64
	unknown     int64
	rejected    int64
}

// DecoderStats contains decoder statistics.
type DecoderStats struct {
	Received    int64
	Decoded     int64
	ParseErrors int64 // malformed JSON
	Unknown     int64 // unrecognised event names
	Rejected    int64 // well-formed but invalid values
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Stats returns current statistics.
func (d *Decoder) Stats() DecoderStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DecoderStats{
		Received:    d.received,
		Decoded:     d.decoded,
		ParseErrors: d.parseErrors,
		Unknown:     d.unknown,
		Rejected:    d.rejected,
	}
}

// Decode parses one frame. Every returned error is a *ProtocolError.
func (d *Decoder) Decode(data []byte) (Event, error) {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()

	name, payload, err := splitEnvelope(data)
	if err != nil {
		d.count(&d.parseErrors)
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	ev, err := decodePayload(name, payload)
	if err != nil {
		pe := &ProtocolError{Event: name, Err: err}
		switch {
		case errors.Is(err, ErrUnknownEvent):
			d.count(&d.unknown)
		case errors.Is(err, ErrMalformed):
			d.count(&d.parseErrors)
		default:
			d.count(&d.rejected)
		}
		return nil, pe
	}

	d.count(&d.decoded)
	return ev, nil
}

func (d *Decoder) count(field *int64) {
	d.mu.Lock()
	*field++
	d.mu.Unlock()
}

// splitEnvelope extracts the event name and its payload. A missing or null
// "data" member means the payload is flattened into the envelope.
func splitEnvelope(data []byte) (string, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}

	name := env.Event
	if name == "" {
		name = env.Type
	}
	if name == "" {
		return "", nil, fmt.Errorf("%w: event name", ErrMissingField)
	}

	payload := env.Data
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		payload = data
	}
	return name, payload, nil
}

func decodePayload(name string, payload json.RawMessage) (Event, error) {
	switch name {
	case EventConnected:
		var w connectedWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		return Connected{Mode: w.Mode}, nil

	case EventRoundStart:
		var w roundStartWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.RoundID == "" {
			return nil, fmt.Errorf("%w: round_id", ErrMissingField)
		}
		return RoundStart{RoundID: string(w.RoundID)}, nil

	case EventRoundCountdown:
		var w roundCountdownWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if !w.Seconds.finite() || w.Seconds.Value < 0 {
			return nil, fmt.Errorf("%w: seconds", ErrOutOfRange)
		}
		return RoundCountdown{Seconds: int(math.Ceil(w.Seconds.Value))}, nil

	case EventRoundLockBets:
		return RoundLockBets{}, nil

	case EventMultiplierUpdate:
		var w multiplierUpdateWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if err := checkMultiplier("multiplier", w.Multiplier); err != nil {
			return nil, err
		}
		return MultiplierUpdate{Multiplier: w.Multiplier.Value}, nil

	case EventRoundCrash:
		var w roundCrashWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if err := checkMultiplier("crash_point", w.CrashPoint); err != nil {
			return nil, err
		}
		return RoundCrash{CrashPoint: w.CrashPoint.Value}, nil

	case EventPlayerBet:
		var w playerBetWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.BetID == "" {
			return nil, fmt.Errorf("%w: bet_id", ErrMissingField)
		}
		if err := checkAmount("amount", w.Amount); err != nil {
			return nil, err
		}
		return PlayerBet{BetID: string(w.BetID), User: w.User, Amount: w.Amount.Value}, nil

	case EventPlayerCashout:
		var w playerCashoutWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.BetID == "" {
			return nil, fmt.Errorf("%w: bet_id", ErrMissingField)
		}
		if err := checkMultiplier("multiplier", w.Multiplier); err != nil {
			return nil, err
		}
		if err := checkAmount("payout", w.Payout); err != nil {
			return nil, err
		}
		kind := w.CashoutType
		if kind != "auto" {
			kind = "manual"
		}
		return PlayerCashout{
			BetID:       string(w.BetID),
			Multiplier:  w.Multiplier.Value,
			Payout:      w.Payout.Value,
			CashoutType: kind,
		}, nil

	case EventBetAccepted:
		var w betAcceptedWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.BetID == "" {
			return nil, fmt.Errorf("%w: bet_id", ErrMissingField)
		}
		return BetAccepted{BetID: string(w.BetID), RoundID: string(w.RoundID), Balance: w.Balance.ptr()}, nil

	case EventCashoutSuccess, EventAutoCashoutTriggered:
		var w settlementWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if err := checkMultiplier("multiplier", w.Multiplier); err != nil {
			return nil, err
		}
		if err := checkAmount("payout", w.Payout); err != nil {
			return nil, err
		}
		if name == EventCashoutSuccess {
			return CashoutSuccess{
				BetID:      string(w.BetID),
				Multiplier: w.Multiplier.Value,
				Payout:     w.Payout.Value,
				Balance:    w.Balance.ptr(),
			}, nil
		}
		return AutoCashoutTriggered{
			BetID:      string(w.BetID),
			Multiplier: w.Multiplier.Value,
			Payout:     w.Payout.Value,
			Balance:    w.Balance.ptr(),
		}, nil

	case EventBetCrashed:
		var w betCrashedWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		var ev BetCrashed
		if w.CrashMultiplier.finite() {
			ev.CrashMultiplier = w.CrashMultiplier.Value
		}
		if w.LostAmount.finite() {
			ev.LostAmount = w.LostAmount.Value
		}
		return ev, nil

	case EventAutoCashoutCancelled:
		return AutoCashoutCancelled{}, nil

	case EventBetFailed, EventCashoutFailed, EventCancelAutoCashoutFailed:
		var w errorWire
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		switch name {
		case EventBetFailed:
			return BetFailed{Error: w.text()}, nil
		case EventCashoutFailed:
			return CashoutFailed{Error: w.text()}, nil
		default:
			return CancelAutoCashoutFailed{Error: w.text()}, nil
		}
	}

	return nil, ErrUnknownEvent
}

func unmarshal(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// checkMultiplier requires a finite value in [1, MaxMultiplier].
func checkMultiplier(field string, n Number) error {
	if !n.Set {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	if !n.finite() || n.Value < 1 || n.Value > MaxMultiplier {
		return fmt.Errorf("%w: %s=%v", ErrOutOfRange, field, n.Value)
	}
	return nil
}

// checkAmount requires a finite non-negative value when present.
func checkAmount(field string, n Number) error {
	if !n.Set {
		return nil
	}
	if !n.finite() || n.Value < 0 {
		return fmt.Errorf("%w: %s=%v", ErrOutOfRange, field, n.Value)
	}
	return nil
}

// Encode serialises a command into its wire envelope.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("encode: nil command")
	}
	return json.Marshal(outboundEnvelope{Type: cmd.CommandName(), Data: cmd})
}

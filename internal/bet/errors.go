package bet

import (
	"errors"
	"fmt"
)

// Validation failures. Each is wrapped in a *ValidationError.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive finite number")
	ErrBelowMinStake       = errors.New("amount below minimum stake")
	ErrAboveMaxStake       = errors.New("amount above maximum stake")
	ErrInvalidThreshold    = errors.New("auto-cashout threshold must be a finite multiplier above 1.00")
	ErrBetInProgress       = errors.New("a bet is already pending or active")
	ErrBettingClosed       = errors.New("betting is closed")
	ErrNotConnected        = errors.New("not connected")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrThrottled           = errors.New("too many requests, slow down")
	ErrNoActiveBet         = errors.New("no active bet")
	ErrNotRunning          = errors.New("round is not running")
	ErrNoAutoCashout       = errors.New("no auto-cashout to cancel")
	ErrCashoutInFlight     = errors.New("cashout already sent, awaiting reply")
)

// ErrSendFailed means the command passed validation but the transport was not
// open. It is a hard failure: the command is not queued or retried.
var ErrSendFailed = errors.New("command not sent: connection unavailable")

// ValidationError is a local precondition failure.
type ValidationError struct {
	Op  string // "place_bet", "cashout", "cancel_auto_cashout"
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ServerRejection is a server-side refusal of one of our commands.
type ServerRejection struct {
	Event   string
	Message string
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Event, e.Message)
}

func invalid(op string, err error) error {
	return &ValidationError{Op: op, Err: err}
}

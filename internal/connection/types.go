package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the coarse connection state shown to the user.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateDegraded   State = "degraded" // socket lost, grace timer running
	StateClosed     State = "closed"
)

// Status is a snapshot of session liveness.
type Status struct {
	State       State `json:"state"`
	Connected   bool  `json:"connected"`    // transport socket open (debounced)
	EngineAlive bool  `json:"engine_alive"` // round events seen since this socket opened
	Attempt     int   `json:"reconnect_attempt"`
	Visible     bool  `json:"visible"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // ws:// or wss:// endpoint for the game mode
	Token            string        // session token, sent as ?token= and as a Bearer header
	HandshakeTimeout time.Duration // Dial handshake deadline
	PingInterval     time.Duration // Keepalive ping period
	PingTimeout      time.Duration // Max time without ping before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends; sends run on the event loop
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      45 * time.Second,
		WriteTimeout:     time.Second,
		BufferSize:       1024,
	}
}

// SessionConfig configures reconnect and debounce timing.
type SessionConfig struct {
	ReconnectBase   time.Duration
	ReconnectStep   time.Duration // added per failed attempt
	ReconnectJitter time.Duration // uniform [0, jitter] added on top
	ReconnectCap    time.Duration // soft cap before jitter
	DisconnectGrace time.Duration
	Client          ClientConfig // URL and Token are set per Connect
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ReconnectBase:   600 * time.Millisecond,
		ReconnectStep:   250 * time.Millisecond,
		ReconnectJitter: 400 * time.Millisecond,
		ReconnectCap:    2500 * time.Millisecond,
		DisconnectGrace: 1500 * time.Millisecond,
		Client:          DefaultClientConfig(),
	}
}

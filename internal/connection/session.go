package connection

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rickgao/crashline/internal/loop"
)

// Handler receives session output. Both methods run on the loop.
type Handler interface {
	HandleMessage(msg TimestampedMessage)
	HandleStatus(st Status)
}

// Dialer opens a connected Client.
type Dialer func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error)

// Dial is the default Dialer backed by gorilla/websocket.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
	c := NewClient(cfg, logger)
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Session keeps one logical connection alive across socket failures.
//
// All methods except Wait must be called on the loop that was passed to
// NewSession.
type Session struct {
	cfg     SessionConfig
	loop    *loop.Loop
	handler Handler
	dial    Dialer
	logger  *slog.Logger
	jitter  func(max time.Duration) time.Duration

	url   string
	token string

	// gen identifies the current socket; callbacks from older sockets are dropped.
	gen        uint64
	client     Client
	dialCancel context.CancelFunc

	state       State
	connected   bool
	engineAlive bool
	attempt     int
	visible     bool
	closed      bool

	reconnect *loop.Timer
	grace     *loop.Timer

	wg sync.WaitGroup
}

// NewSession creates a Session. dial may be nil to use Dial.
func NewSession(cfg SessionConfig, l *loop.Loop, h Handler, dial Dialer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = Dial
	}
	return &Session{
		cfg:     cfg,
		loop:    l,
		handler: h,
		dial:    dial,
		logger:  logger.With("component", "session"),
		jitter:  uniformJitter,
		state:   StateClosed,
		visible: true,
	}
}

// Connect opens a connection to url, forcibly closing any prior socket.
func (s *Session) Connect(url, token string) {
	if s.closed {
		return
	}

	s.url, s.token = url, token
	s.dropSocket()
	s.reconnect.Stop()
	s.grace.Stop()
	s.reconnect, s.grace = nil, nil

	s.attempt = 0
	s.connected = false
	s.engineAlive = false
	s.state = StateConnecting
	s.notify()

	s.startDial()
}

// Send writes one frame if the socket is open. There is no outbound queue:
// false means the frame was not sent and will not be retried.
//
// The write happens on the calling goroutine, which is the event loop, and
// is bounded by ClientConfig.WriteTimeout. Inbound processing waits for it,
// so keep that timeout short.
func (s *Session) Send(data []byte) bool {
	if s.closed || s.client == nil || s.state != StateOpen {
		return false
	}
	if err := s.client.Send(data); err != nil {
		s.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// SetVisible pauses reconnect attempts while hidden and resumes them
// immediately when the view becomes visible again.
func (s *Session) SetVisible(visible bool) {
	if s.closed || s.visible == visible {
		return
	}
	s.visible = visible

	if !visible {
		if s.reconnect.Active() {
			s.logger.Debug("reconnect paused while hidden", "attempt", s.attempt)
		}
		s.reconnect.Stop()
		s.reconnect = nil
		s.notify()
		return
	}

	if s.needsSocket() {
		s.reconnect.Stop()
		s.reconnect = nil
		if s.state == StateClosed {
			s.state = StateConnecting
		}
		s.startDial()
	}
	s.notify()
}

// MarkEngineAlive records that the server is driving round events.
func (s *Session) MarkEngineAlive() {
	if s.closed || s.engineAlive || s.client == nil {
		return
	}
	s.engineAlive = true
	s.notify()
}

// Close tears the session down: timers, in-flight dial and socket.
// No callback runs after Close returns.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	s.reconnect.Stop()
	s.grace.Stop()
	s.reconnect, s.grace = nil, nil
	s.dropSocket()

	s.connected = false
	s.engineAlive = false
	s.state = StateClosed

	s.logger.Debug("session closed")
}

// Wait blocks until dial and forwarding goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Status returns the current liveness snapshot.
func (s *Session) Status() Status {
	return Status{
		State:       s.state,
		Connected:   s.connected,
		EngineAlive: s.engineAlive,
		Attempt:     s.attempt,
		Visible:     s.visible,
	}
}

// Connected reports whether the transport is considered up.
func (s *Session) Connected() bool { return s.connected }

// EngineAlive reports whether round events were seen on this socket.
func (s *Session) EngineAlive() bool { return s.engineAlive }

// Backoff returns the reconnect delay before jitter for attempt n.
func (s *Session) Backoff(n int) time.Duration {
	d := s.cfg.ReconnectBase + time.Duration(n)*s.cfg.ReconnectStep
	if s.cfg.ReconnectCap > 0 && d > s.cfg.ReconnectCap {
		d = s.cfg.ReconnectCap
	}
	return d
}

func (s *Session) startDial() {
	if s.url == "" {
		return
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel

	cfg := s.cfg.Client
	cfg.URL = s.url
	cfg.Token = s.token
	logger := s.logger.With("gen", gen)

	s.logger.Info("connecting", "url", s.url, "attempt", s.attempt)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		c, err := s.dial(ctx, cfg, logger)
		posted := s.loop.Post(func() { s.onDial(gen, c, err) })
		if !posted && c != nil {
			c.Close()
		}
	}()
}

func (s *Session) onDial(gen uint64, c Client, err error) {
	if gen != s.gen || s.closed {
		if c != nil {
			c.Close()
		}
		return
	}
	s.dialCancel = nil

	if err != nil {
		s.logger.Warn("connect failed", "attempt", s.attempt, "error", err)
		s.scheduleReconnect()
		if !s.grace.Active() {
			s.state = s.idleState()
		}
		s.notify()
		return
	}

	s.grace.Stop()
	s.grace = nil

	s.client = c
	s.connected = true
	s.engineAlive = false
	s.attempt = 0
	s.state = StateOpen

	s.logger.Info("connected", "url", s.url)

	s.wg.Add(1)
	go s.forward(gen, c)

	s.notify()
}

// forward moves socket output onto the loop, preserving arrival order.
func (s *Session) forward(gen uint64, c Client) {
	defer s.wg.Done()

	post := func(msg TimestampedMessage) bool {
		return s.loop.Post(func() { s.onMessage(gen, msg) })
	}

	for {
		select {
		case msg := <-c.Messages():
			if !post(msg) {
				return
			}
		case err := <-c.Errors():
			// Deliver frames read before the failure first.
		drain:
			for {
				select {
				case msg := <-c.Messages():
					if !post(msg) {
						return
					}
				default:
					break drain
				}
			}
			s.loop.Post(func() { s.onTransportError(gen, err) })
			return
		case <-c.Done():
			return
		}
	}
}

func (s *Session) onMessage(gen uint64, msg TimestampedMessage) {
	if gen != s.gen || s.closed {
		return
	}
	if s.grace.Active() {
		s.grace.Stop()
		s.grace = nil
	}
	if s.handler != nil {
		s.handler.HandleMessage(msg)
	}
}

func (s *Session) onTransportError(gen uint64, err error) {
	if gen != s.gen || s.closed {
		return
	}

	s.logger.Warn("connection lost", "error", err)

	s.dropSocket()
	s.scheduleReconnect()
	if s.connected {
		s.state = StateDegraded
		s.startGrace()
	} else {
		s.state = s.idleState()
	}
	s.notify()
}

// startGrace delays flipping connected to false.
func (s *Session) startGrace() {
	if s.grace.Active() {
		return
	}
	s.grace = s.loop.After(s.cfg.DisconnectGrace, func() {
		s.grace = nil
		if s.closed {
			return
		}
		s.connected = false
		s.state = s.idleState()
		s.logger.Info("disconnected", "grace", s.cfg.DisconnectGrace)
		s.notify()
	})
}

// idleState is the state while no socket is open and no grace is pending.
func (s *Session) idleState() State {
	if s.reconnect.Active() || s.dialCancel != nil {
		return StateConnecting
	}
	return StateClosed
}

func (s *Session) scheduleReconnect() {
	if s.closed || s.url == "" {
		return
	}
	if !s.visible {
		s.logger.Debug("reconnect paused while hidden", "attempt", s.attempt)
		return
	}
	if s.reconnect.Active() || s.dialCancel != nil {
		return
	}

	delay := s.Backoff(s.attempt) + s.jitter(s.cfg.ReconnectJitter)
	s.attempt++

	s.logger.Info("reconnect scheduled", "attempt", s.attempt, "delay", delay)

	s.reconnect = s.loop.After(delay, func() {
		s.reconnect = nil
		if s.closed || !s.visible {
			return
		}
		s.startDial()
	})
}

// dropSocket abandons the current socket and any in-flight dial.
func (s *Session) dropSocket() {
	s.gen++
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

func (s *Session) needsSocket() bool {
	return !s.closed && s.url != "" && s.client == nil && s.dialCancel == nil
}

func (s *Session) notify() {
	if s.handler != nil {
		s.handler.HandleStatus(s.Status())
	}
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

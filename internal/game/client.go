package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/crashline/internal/autocashout"
	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/connection"
	"github.com/rickgao/crashline/internal/feed"
	"github.com/rickgao/crashline/internal/loop"
	"github.com/rickgao/crashline/internal/metrics"
	"github.com/rickgao/crashline/internal/protocol"
	"github.com/rickgao/crashline/internal/round"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("game client closed")

// Config configures a Client.
type Config struct {
	Session             connection.SessionConfig
	Bet                 bet.Config
	AutoCashoutCooldown time.Duration
	FeedCapacity        int
	HistoryCapacity     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Session:             connection.DefaultSessionConfig(),
		Bet:                 bet.DefaultConfig(),
		AutoCashoutCooldown: autocashout.DefaultCooldown,
		FeedCapacity:        feed.DefaultCapacity,
		HistoryCapacity:     round.DefaultHistoryCap,
	}
}

// Deps are the collaborators of a Client. All fields are optional.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Balance  BalanceSource
	Recorder Recorder
	Notifier Notifier
	Dialer   connection.Dialer
}

// Client is one game session: a connection plus everything derived from it.
//
// Fields below the loop are owned by the loop goroutine.
type Client struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	balance  BalanceSource
	recorder Recorder
	notifier Notifier

	loop    *loop.Loop
	session *connection.Session
	decoder *protocol.Decoder
	rounds  *round.Machine
	bets    *bet.Tracker
	monitor *autocashout.Monitor
	feed    *feed.Store

	status    connection.Status
	mode      string
	countdown int
	lastError string
	seq       uint64

	view atomic.Pointer[View]

	subMu sync.Mutex
	subs  subscribers

	running      atomic.Bool
	teardownOnce sync.Once
	stopped      chan struct{}
}

// New creates a Client. Call Run to start it and Connect to open the socket.
func New(cfg Config, deps Deps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	c := &Client{
		logger:   logger.With("component", "game"),
		metrics:  deps.Metrics,
		balance:  deps.Balance,
		recorder: deps.Recorder,
		notifier: notifier,
		loop:     loop.New(logger.With("component", "loop")),
		decoder:  protocol.NewDecoder(logger.With("component", "decoder")),
		rounds:   round.NewMachine(cfg.HistoryCapacity, logger.With("component", "round")),
		feed:     feed.NewStore(cfg.FeedCapacity),
		stopped:  make(chan struct{}),
	}

	c.session = connection.NewSession(cfg.Session, c.loop, c, deps.Dialer, logger)
	c.status = c.session.Status()

	d := &dispatcher{out: c.session, metrics: c.metrics, logger: c.logger}
	var balance bet.Balance
	if c.balance != nil {
		balance = c.balance
	}
	betCfg := cfg.Bet
	if betCfg.CashoutCooldown <= 0 {
		betCfg.CashoutCooldown = cfg.AutoCashoutCooldown
	}
	c.bets = bet.NewTracker(betCfg, d, environment{c}, balance, logger.With("component", "bet"))
	c.monitor = autocashout.New(c.bets, cfg.AutoCashoutCooldown, logger)

	if c.balance != nil {
		c.balance.OnChange(func(float64) {
			c.loop.Post(c.publish)
		})
	}

	c.publish()
	return c
}

// Run processes events until ctx is cancelled or Close is called, then tears
// the session down. A cancelled ctx or an earlier Close is a clean exit.
func (c *Client) Run(ctx context.Context) error {
	c.running.Store(true)
	err := c.loop.Run(ctx)
	c.teardown()
	if errors.Is(err, context.Canceled) || errors.Is(err, loop.ErrStopped) {
		return nil
	}
	return err
}

// Close stops the client: reconnect, grace and cooldown timers are cancelled
// and the socket is closed. No callback fires afterwards.
func (c *Client) Close() error {
	c.loop.Stop()
	if c.running.Load() {
		<-c.stopped
		return nil
	}
	c.teardown()
	return nil
}

func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		// The loop has exited, so this goroutine owns the state.
		c.session.Close()
		c.monitor.Reset()
		c.session.Wait()

		c.subMu.Lock()
		c.subs.closeAll()
		c.subMu.Unlock()

		c.logger.Info("game client stopped")
		close(c.stopped)
	})
}

// Connect opens a connection, replacing any existing one.
func (c *Client) Connect(url, token string) error {
	return c.call(func() {
		c.mode = ""
		c.session.Connect(url, token)
	})
}

// PlaceBet validates and submits a bet for the current betting window.
// autoCashout may be nil.
func (c *Client) PlaceBet(amount float64, autoCashout *float64) error {
	var err error
	if callErr := c.call(func() { err = c.bets.PlaceBet(amount, autoCashout) }); callErr != nil {
		return callErr
	}
	return err
}

// CashOut requests settlement of the active bet at the current multiplier.
func (c *Client) CashOut() error {
	var err error
	if callErr := c.call(func() { err = c.bets.CashOut(c.rounds.Multiplier()) }); callErr != nil {
		return callErr
	}
	return err
}

// CancelAutoCashout asks the server to drop the active bet's threshold.
func (c *Client) CancelAutoCashout() error {
	var err error
	if callErr := c.call(func() { err = c.bets.CancelAutoCashout() }); callErr != nil {
		return callErr
	}
	return err
}

// SetVisible pauses reconnect attempts while hidden.
func (c *Client) SetVisible(visible bool) error {
	return c.call(func() { c.session.SetVisible(visible) })
}

// Snapshot returns the latest view.
func (c *Client) Snapshot() View {
	return *c.view.Load()
}

// Subscribe returns a channel that receives the current view and then every
// new one. The channel is closed by cancel or when the client stops.
func (c *Client) Subscribe() (<-chan View, func()) {
	c.subMu.Lock()
	id, ch := c.subs.add(c.Snapshot())
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			c.subs.remove(id)
			c.subMu.Unlock()
		})
	}
	return ch, cancel
}

// DecoderStats returns inbound frame statistics.
func (c *Client) DecoderStats() protocol.DecoderStats {
	return c.decoder.Stats()
}

// call runs fn on the loop and publishes the resulting view.
func (c *Client) call(fn func()) error {
	err := c.loop.Call(func() {
		fn()
		c.publish()
	})
	if errors.Is(err, loop.ErrStopped) {
		return ErrClosed
	}
	return err
}

// publish builds a fresh view and hands it to readers. Runs on the loop.
func (c *Client) publish() {
	c.seq++
	v := View{
		Mode:        c.mode,
		Connection:  c.status,
		Countdown:   c.countdown,
		History:     c.rounds.History(),
		Bet:         c.bets.Bet(),
		AutoCooling: c.monitor.Cooling(),
		Feed:        c.feed.Entries(),
		LastError:   c.lastError,
		Seq:         c.seq,
		UpdatedAt:   time.Now(),
	}
	if r, ok := c.rounds.Current(); ok {
		v.Round = &r
	}
	if c.balance != nil {
		if amount, ok := c.balance.Available(); ok {
			v.Balance = &amount
		}
	}

	c.view.Store(&v)

	c.subMu.Lock()
	c.subs.broadcast(v)
	c.subMu.Unlock()
}

// environment exposes loop-owned state to the bet tracker.
type environment struct {
	c *Client
}

func (e environment) Phase() round.Phase { return e.c.rounds.Phase() }
func (e environment) Connected() bool    { return e.c.session.Connected() }

func (e environment) RoundID() string {
	r, ok := e.c.rounds.Current()
	if !ok {
		return ""
	}
	return r.ID
}

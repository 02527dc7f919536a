package balance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Fetcher reads the balance from the wallet service.
type Fetcher interface {
	Balance(ctx context.Context) (Snapshot, error)
}

// Observer is told about refresh outcomes.
type Observer interface {
	BalanceRefreshed(ok bool)
}

// Config holds refresh configuration.
type Config struct {
	Interval time.Duration // periodic refresh (0 = only on demand)
	Timeout  time.Duration // per-request timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Tracker holds the last known balance. Safe for concurrent use.
type Tracker struct {
	cfg      Config
	fetcher  Fetcher
	cache    Cache
	observer Observer
	logger   *slog.Logger

	mu       sync.RWMutex
	amount   float64
	known    bool
	version  uint64 // bumped on every update
	stored   uint64 // version last written to the cache
	onChange func(float64)

	refresh chan struct{}
	persist chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a Tracker. fetcher, cache and observer may be nil.
func NewTracker(cfg Config, fetcher Fetcher, cache Cache, observer Observer, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:      cfg,
		fetcher:  fetcher,
		cache:    cache,
		observer: observer,
		logger:   logger.With("component", "balance"),
		refresh:  make(chan struct{}, 1),
		persist:  make(chan struct{}, 1),
	}
}

// OnChange registers fn to be called after every update. fn runs on the
// goroutine that applied the update and must not block.
func (t *Tracker) OnChange(fn func(float64)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Available returns the last known balance.
func (t *Tracker) Available() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.amount, t.known
}

// Set applies a balance pushed by the game server.
func (t *Tracker) Set(amount float64) {
	t.apply(amount, 0, false)
}

// RequestRefresh schedules an out-of-band REST refresh. Never blocks.
func (t *Tracker) RequestRefresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

// Start seeds the balance from the cache and begins the refresh loop.
func (t *Tracker) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	if t.cache != nil {
		if v, ok, err := t.cache.Load(t.ctx); err != nil {
			t.logger.Warn("balance cache load failed", "error", err)
		} else if ok {
			t.mu.Lock()
			if !t.known {
				t.amount, t.known = v, true
			}
			t.mu.Unlock()
			t.logger.Info("balance seeded from cache", "amount", v)
		}
	}

	if t.fetcher != nil || t.cache != nil {
		t.wg.Add(1)
		go t.run()
	}

	t.logger.Info("balance tracker started", "interval", t.cfg.Interval)
	return nil
}

// Stop shuts down the refresh loop.
func (t *Tracker) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("balance tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run() {
	defer t.wg.Done()

	var tick <-chan time.Time
	if t.cfg.Interval > 0 {
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	t.fetch()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-tick:
			t.fetch()
		case <-t.refresh:
			t.fetch()
		case <-t.persist:
			t.store()
		}
	}
}

// fetch refreshes over REST. A push that lands while the request is in
// flight is newer than the response, so the response is then discarded.
func (t *Tracker) fetch() {
	if t.fetcher == nil {
		return
	}

	t.mu.RLock()
	startVersion := t.version
	t.mu.RUnlock()

	ctx := t.ctx
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(t.ctx, t.cfg.Timeout)
		defer cancel()
	}

	snap, err := t.fetcher.Balance(ctx)
	if t.observer != nil {
		t.observer.BalanceRefreshed(err == nil)
	}
	if err != nil {
		if t.ctx.Err() == nil {
			t.logger.Warn("balance refresh failed", "error", err)
		}
		return
	}

	if !t.apply(snap.Amount, startVersion, true) {
		t.logger.Debug("stale balance refresh discarded", "amount", snap.Amount)
	}
}

// apply records a new balance. When conditional, it only applies if no
// update happened since version. Cache writes happen on the refresh goroutine.
func (t *Tracker) apply(amount float64, version uint64, conditional bool) bool {
	t.mu.Lock()
	if conditional && t.version != version {
		t.mu.Unlock()
		return false
	}
	t.amount = amount
	t.known = true
	t.version++
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(amount)
	}

	if t.cache != nil {
		select {
		case t.persist <- struct{}{}:
		default:
		}
	}
	return true
}

// store writes the latest balance to the cache if it changed.
func (t *Tracker) store() {
	t.mu.RLock()
	amount, version := t.amount, t.version
	dirty := t.known && version != t.stored
	t.mu.RUnlock()

	if !dirty {
		return
	}

	ctx, cancel := context.WithTimeout(t.ctx, time.Second)
	defer cancel()
	if err := t.cache.Store(ctx, amount); err != nil {
		t.logger.Warn("balance cache store failed", "error", err)
		return
	}

	t.mu.Lock()
	if t.stored < version {
		t.stored = version
	}
	t.mu.Unlock()
}

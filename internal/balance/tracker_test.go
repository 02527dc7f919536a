package balance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu      sync.Mutex
	amount  float64
	err     error
	calls   int
	release chan struct{} // when set, Balance blocks until closed
	started chan struct{}
}

func (f *fakeFetcher) Balance(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	f.calls++
	release, started := f.release, f.started
	amount, err := f.amount, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Amount: amount, FetchedAt: time.Now()}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu     sync.Mutex
	value  float64
	ok     bool
	stores int
}

func (c *memCache) Load(ctx context.Context) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.ok, nil
}

func (c *memCache) Store(ctx context.Context, amount float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.ok = amount, true
	c.stores++
	return nil
}

func (c *memCache) get() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.ok
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) BalanceRefreshed(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.ok++
	} else {
		o.fail++
	}
}

func eventually(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", desc)
}

func stop(t *testing.T, tr *Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTracker_UnknownUntilSet(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil, nil, nil, nil)

	if _, ok := tr.Available(); ok {
		t.Fatal("balance known before any update")
	}

	var seen []float64
	tr.OnChange(func(v float64) { seen = append(seen, v) })
	tr.Set(9000)

	if v, ok := tr.Available(); !ok || v != 9000 {
		t.Errorf("Available() = %v, %v", v, ok)
	}
	if len(seen) != 1 || seen[0] != 9000 {
		t.Errorf("OnChange saw %v", seen)
	}
}

func TestTracker_InitialFetch(t *testing.T) {
	f := &fakeFetcher{amount: 420}
	obs := &countingObserver{}
	tr := NewTracker(Config{Timeout: time.Second}, f, nil, obs, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stop(t, tr)

	eventually(t, "initial fetch", func() bool {
		v, ok := tr.Available()
		return ok && v == 420
	})
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.ok != 1 {
		t.Errorf("observer ok = %d, want 1", obs.ok)
	}
}

func TestTracker_RequestRefresh(t *testing.T) {
	f := &fakeFetcher{amount: 100}
	tr := NewTracker(Config{Timeout: time.Second}, f, nil, nil, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stop(t, tr)

	eventually(t, "initial fetch", func() bool { return f.count() == 1 })

	f.mu.Lock()
	f.amount = 75
	f.mu.Unlock()
	tr.RequestRefresh()
	tr.RequestRefresh() // coalesced

	eventually(t, "refresh", func() bool {
		v, _ := tr.Available()
		return v == 75
	})
}

func TestTracker_PushBeatsStaleRefresh(t *testing.T) {
	f := &fakeFetcher{
		amount:  500,
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	tr := NewTracker(Config{Timeout: time.Second}, f, nil, nil, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stop(t, tr)

	<-f.started
	// Server push arrives while the REST request is in flight.
	tr.Set(9000)
	close(f.release)

	eventually(t, "fetch completion", func() bool { return f.count() == 1 })
	time.Sleep(20 * time.Millisecond)

	if v, _ := tr.Available(); v != 9000 {
		t.Errorf("Available() = %v, stale refresh overwrote push", v)
	}
}

func TestTracker_FetchErrorKeepsLastValue(t *testing.T) {
	f := &fakeFetcher{err: errors.New("wallet down")}
	obs := &countingObserver{}
	tr := NewTracker(Config{Timeout: time.Second}, f, nil, obs, nil)
	tr.Set(33)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stop(t, tr)

	eventually(t, "failed fetch", func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.fail == 1
	})
	if v, ok := tr.Available(); !ok || v != 33 {
		t.Errorf("Available() = %v, %v", v, ok)
	}
}

func TestTracker_CacheSeedAndStore(t *testing.T) {
	cache := &memCache{value: 12.5, ok: true}
	tr := NewTracker(Config{}, nil, cache, nil, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stop(t, tr)

	if v, ok := tr.Available(); !ok || v != 12.5 {
		t.Fatalf("seeded balance = %v, %v", v, ok)
	}

	tr.Set(80)
	eventually(t, "cache store", func() bool {
		v, _ := cache.get()
		return v == 80
	})
}

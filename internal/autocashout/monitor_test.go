package autocashout

import (
	"errors"
	"testing"
	"time"

	"github.com/rickgao/crashline/internal/bet"
)

type fakeTarget struct {
	bet     bet.Bet
	err     error
	cashout []float64
}

func (f *fakeTarget) Bet() bet.Bet { return f.bet }

func (f *fakeTarget) CashOut(multiplier float64) error {
	if f.err != nil {
		return f.err
	}
	f.cashout = append(f.cashout, multiplier)
	return nil
}

func newMonitor(target *fakeTarget) (*Monitor, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(target, 400*time.Millisecond, nil)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func activeBet(threshold float64) bet.Bet {
	return bet.Bet{ID: "b1", State: bet.StateActive, Amount: 1000, AutoCashout: &threshold}
}

func TestOnMultiplier_FiresAtThreshold(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0)}
	m, _ := newMonitor(target)

	if m.OnMultiplier(1.99) {
		t.Error("fired below threshold")
	}
	if !m.OnMultiplier(2.0) {
		t.Fatal("did not fire at threshold")
	}
	if len(target.cashout) != 1 || target.cashout[0] != 2.0 {
		t.Errorf("cashouts = %v", target.cashout)
	}
}

func TestOnMultiplier_AtMostOnceWithinCooldown(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0)}
	m, clock := newMonitor(target)

	for i, mult := range []float64{2.5, 2.51, 2.6, 2.7, 3.0} {
		*clock = clock.Add(50 * time.Millisecond)
		m.OnMultiplier(mult)
		if len(target.cashout) != 1 {
			t.Fatalf("tick %d: %d cashouts, want 1", i, len(target.cashout))
		}
	}
	if !m.Cooling() {
		t.Error("expected cooldown to be active")
	}
}

func TestOnMultiplier_RetriesAfterCooldown(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0)}
	m, clock := newMonitor(target)

	m.OnMultiplier(2.5)
	*clock = clock.Add(401 * time.Millisecond)

	if !m.OnMultiplier(2.9) {
		t.Fatal("expected retry after cooldown with bet still active")
	}
	if m.Fired() != 2 {
		t.Errorf("Fired() = %d, want 2", m.Fired())
	}
}

func TestOnMultiplier_Inert(t *testing.T) {
	tests := []struct {
		name string
		bet  bet.Bet
	}{
		{name: "no bet", bet: bet.Bet{State: bet.StateNone}},
		{name: "pending", bet: bet.Bet{State: bet.StatePending, AutoCashout: ptr(1.5)}},
		{name: "cashed out", bet: bet.Bet{ID: "b1", State: bet.StateCashedOut, AutoCashout: ptr(1.5)}},
		{name: "crashed out", bet: bet.Bet{ID: "b1", State: bet.StateCrashedOut, AutoCashout: ptr(1.5)}},
		{name: "threshold cancelled", bet: bet.Bet{ID: "b1", State: bet.StateActive}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{bet: tt.bet}
			m, _ := newMonitor(target)

			if m.OnMultiplier(10) {
				t.Error("fired on inert bet")
			}
			if len(target.cashout) != 0 {
				t.Errorf("cashouts = %v", target.cashout)
			}
		})
	}
}

func TestOnMultiplier_FailedSendNotCounted(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0), err: errors.New("closed")}
	m, _ := newMonitor(target)

	if m.OnMultiplier(2.5) {
		t.Fatal("reported fire on failed send")
	}
	if m.Cooling() {
		t.Error("cooldown started without a send")
	}

	target.err = nil
	if !m.OnMultiplier(2.6) {
		t.Error("expected fire once transport recovers")
	}
}

func TestOnMultiplier_NewBetNotSuppressed(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0)}
	m, _ := newMonitor(target)

	m.OnMultiplier(2.0)

	next := activeBet(1.5)
	next.ID = "b2"
	target.bet = next
	if !m.OnMultiplier(1.6) {
		t.Error("cooldown from previous bet suppressed new bet")
	}
}

func TestReset(t *testing.T) {
	target := &fakeTarget{bet: activeBet(2.0)}
	m, _ := newMonitor(target)

	m.OnMultiplier(2.0)
	m.Reset()
	if m.Cooling() {
		t.Error("Cooling() after Reset")
	}
}

func ptr(v float64) *float64 { return &v }

func TestOnMultiplier_SkipsWhileCashoutInFlight(t *testing.T) {
	target := &fakeTarget{
		bet: activeBet(2.0),
		err: &bet.ValidationError{Op: "cashout", Err: bet.ErrCashoutInFlight},
	}
	m, _ := newMonitor(target)

	if m.OnMultiplier(2.5) {
		t.Error("fired while a manual cashout was in flight")
	}
	if m.Fired() != 0 || m.Cooling() {
		t.Errorf("Fired() = %d, Cooling() = %v, want 0 and false", m.Fired(), m.Cooling())
	}
}

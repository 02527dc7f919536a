package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, m *Metrics) map[string]*float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				key += "{" + l.GetName() + "=" + l.GetValue() + "}"
			}
			switch {
			case metric.Counter != nil:
				out[key] = metric.Counter.Value
			case metric.Gauge != nil:
				out[key] = metric.Gauge.Value
			}
		}
	}
	return out
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.EventReceived("round_start")
	m.EventReceived("round_start")
	m.ProtocolError("")
	m.CommandDispatched("place_bet", true)
	m.CommandDispatched("cashout", false)
	m.SetLiveness(true, false)

	got := gather(t, m)
	tests := []struct {
		key  string
		want float64
	}{
		{"crashline_events_received_total{event=round_start}", 2},
		{"crashline_protocol_errors_total{event=unknown}", 1},
		{"crashline_commands_sent_total{command=place_bet}", 1},
		{"crashline_commands_refused_total{command=cashout}", 1},
		{"crashline_connected", 1},
		{"crashline_engine_alive", 0},
	}
	for _, tt := range tests {
		v, ok := got[tt.key]
		if !ok || v == nil {
			t.Errorf("%s missing", tt.key)
			continue
		}
		if *v != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, *v, tt.want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.EventReceived("x")
	m.ProtocolError("x")
	m.CommandDispatched("x", true)
	m.ServerRejection("x")
	m.ReconnectScheduled()
	m.AutoCashoutFired()
	m.SetLiveness(true, true)
	m.SetMultiplier(2)
	m.RoundCrashed(2)
	m.WriterBatch("rounds", 3)
	m.WriterError("rounds")
	m.BalanceRefreshed(true)

	if m.Registry() != nil {
		t.Error("nil Metrics returned a registry")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AutoCashoutFired()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "crashline_auto_cashouts_fired_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	if a.Registry() == b.Registry() {
		t.Fatal("registries shared")
	}
	if err := a.Registry().Register(prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total"})); err != nil {
		t.Fatalf("register extra collector: %v", err)
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crashline"

// Metrics holds the client's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsReceived   *prometheus.CounterVec
	protocolErrors   *prometheus.CounterVec
	commandsSent     *prometheus.CounterVec
	commandsRefused  *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	reconnects       prometheus.Counter
	autoCashouts     prometheus.Counter
	connected        prometheus.Gauge
	engineAlive      prometheus.Gauge
	multiplier       prometheus.Gauge
	crashPoints      prometheus.Histogram
	writerBatch      *prometheus.HistogramVec
	writerErrors     *prometheus.CounterVec
	balanceRefreshes *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound events decoded, by event name.",
		}, []string{"event"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Inbound frames discarded as malformed or out of phase.",
		}, []string{"event"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Outbound commands written to the socket.",
		}, []string{"command"}),
		commandsRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_refused_total",
			Help:      "Outbound commands not sent because the socket was closed.",
		}, []string{"command"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_rejections_total",
			Help:      "Commands refused by the server.",
		}, []string{"event"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled.",
		}),
		autoCashouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_cashouts_fired_total",
			Help:      "Cashout commands sent by the auto-cashout monitor.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the transport is considered up.",
		}),
		engineAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_alive",
			Help:      "1 once round events have been seen on the current socket.",
		}),
		multiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_multiplier",
			Help:      "Latest multiplier of the current round.",
		}),
		crashPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crash_point",
			Help:      "Observed crash points.",
			Buckets:   []float64{1.01, 1.2, 1.5, 2, 3, 5, 10, 25, 100},
		}),
		writerBatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "writer_batch_size",
			Help:      "Rows per audit batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"table"}),
		writerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_errors_total",
			Help:      "Failed audit batch writes.",
		}, []string{"table"}),
		balanceRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_refreshes_total",
			Help:      "Balance refreshes over REST, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsReceived,
		m.protocolErrors,
		m.commandsSent,
		m.commandsRefused,
		m.rejections,
		m.reconnects,
		m.autoCashouts,
		m.connected,
		m.engineAlive,
		m.multiplier,
		m.crashPoints,
		m.writerBatch,
		m.writerErrors,
		m.balanceRefreshes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(event).Inc()
}

func (m *Metrics) ProtocolError(event string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.protocolErrors.WithLabelValues(event).Inc()
}

// CommandDispatched counts a command by whether it reached the socket.
func (m *Metrics) CommandDispatched(command string, sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.commandsSent.WithLabelValues(command).Inc()
	} else {
		m.commandsRefused.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) ServerRejection(event string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(event).Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) AutoCashoutFired() {
	if m == nil {
		return
	}
	m.autoCashouts.Inc()
}

// SetLiveness records both liveness flags. They are kept as separate gauges.
func (m *Metrics) SetLiveness(connected, engineAlive bool) {
	if m == nil {
		return
	}
	m.connected.Set(boolToFloat(connected))
	m.engineAlive.Set(boolToFloat(engineAlive))
}

func (m *Metrics) SetMultiplier(v float64) {
	if m == nil {
		return
	}
	m.multiplier.Set(v)
}

func (m *Metrics) RoundCrashed(point float64) {
	if m == nil {
		return
	}
	m.crashPoints.Observe(point)
}

func (m *Metrics) WriterBatch(table string, rows int) {
	if m == nil {
		return
	}
	m.writerBatch.WithLabelValues(table).Observe(float64(rows))
}

func (m *Metrics) WriterError(table string) {
	if m == nil {
		return
	}
	m.writerErrors.WithLabelValues(table).Inc()
}

func (m *Metrics) BalanceRefreshed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.balanceRefreshes.WithLabelValues(result).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "multiplier"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	RoundsStarted    prometheus.Counter
	RoundsFrozen     prometheus.Counter
	Ticks            prometheus.Counter
	Bets             *prometheus.CounterVec
	BetsRejected     *prometheus.CounterVec
	FreezeMultiplier prometheus.Histogram
	Participants     prometheus.Gauge
	Clients          prometheus.Gauge
	ClientsDropped   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_started_total",
			Help: "Rounds that entered the running state.",
		}),
		RoundsFrozen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_frozen_total",
			Help: "Rounds that froze and were settled.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Multiplier ticks computed.",
		}),
		Bets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_total",
			Help: "Bets accepted, by source.",
		}, []string{"source"}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_rejected_total",
			Help: "Bets rejected, by reason.",
		}, []string{"reason"}),
		FreezeMultiplier: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "freeze_multiplier",
			Help:    "Multiplier value rounds froze at.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		Participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "participants",
			Help: "Registered participants, synthetic included.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connected_clients",
			Help: "Clients subscribed to broadcasts.",
		}),
		ClientsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "clients_dropped_total",
			Help: "Clients evicted for not keeping up with broadcasts.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RoundsStarted, m.RoundsFrozen, m.Ticks, m.Bets, m.BetsRejected,
		m.FreezeMultiplier, m.Participants, m.Clients, m.ClientsDropped,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoundStarted() {
	if m != nil {
		m.RoundsStarted.Inc()
	}
}

func (m *Metrics) RoundFrozen(freeze float64) {
	if m != nil {
		m.RoundsFrozen.Inc()
		m.FreezeMultiplier.Observe(freeze)
	}
}

func (m *Metrics) Tick() {
	if m != nil {
		m.Ticks.Inc()
	}
}

func (m *Metrics) BetPlaced(source string, n int) {
	if m != nil {
		m.Bets.WithLabelValues(source).Add(float64(n))
	}
}

func (m *Metrics) BetRejected(reason string) {
	if m != nil {
		m.BetsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetParticipants(n int) {
	if m != nil {
		m.Participants.Set(float64(n))
	}
}

func (m *Metrics) SetClients(n int) {
	if m != nil {
		m.Clients.Set(float64(n))
	}
}

func (m *Metrics) ClientDropped() {
	if m != nil {
		m.ClientsDropped.Inc()
	}
}

package notify

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Metrics traduce los eventos del engine a métricas Prometheus.
// Usa un registry propio para poder crear varias instancias (tests).
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	blocked     *prometheus.CounterVec
	bets        prometheus.Counter
	stake       prometheus.Counter
	pending     prometheus.Gauge
	safeMode    prometheus.Gauge
	tickLatency prometheus.Histogram
	lag         prometheus.Histogram
}

// NewMetrics crea y registra las métricas.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hoopsarb_events_total", Help: "Engine events by name"},
			[]string{"event"},
		),
		blocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hoopsarb_blocked_total", Help: "Blocked signals by reason"},
			[]string{"reason"},
		),
		bets: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "hoopsarb_bets_total", Help: "Bets accepted by the executor"},
		),
		stake: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "hoopsarb_stake_total", Help: "Sum of accepted stakes"},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "hoopsarb_pending_signals", Help: "Signals awaiting resolution"},
		),
		safeMode: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "hoopsarb_safe_mode", Help: "1 while safe mode is engaged"},
		),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hoopsarb_tick_duration_seconds",
			Help:    "Duration of one engine iteration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hoopsarb_resolution_lag_seconds",
			Help:    "Seconds until the bet feed caught up with the transmission",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30, 60, 90},
		}),
	}
	m.registry.MustRegister(m.events, m.blocked, m.bets, m.stake, m.pending, m.safeMode, m.tickLatency, m.lag)
	return m
}

// Registry devuelve el registry de las métricas.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler devuelve el handler HTTP de /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Publish implementa ports.EventSink.
func (m *Metrics) Publish(_ context.Context, ev domain.Event) {
	m.events.WithLabelValues(string(ev.Name)).Inc()

	switch ev.Name {
	case domain.EventBlocked:
		m.blocked.WithLabelValues(ev.Message()).Inc()
	case domain.EventBetPlaced:
		m.bets.Inc()
		if v, ok := number(ev.Fields["stake"]); ok {
			m.stake.Add(v)
		}
	case domain.EventSafeModeEnabled:
		m.safeMode.Set(1)
	case domain.EventSafeModeRecovered:
		m.safeMode.Set(0)
	case domain.EventDelayResolved:
		if v, ok := number(ev.Fields["lag_seconds"]); ok {
			m.lag.Observe(v)
		}
	case domain.EventTick:
		if v, ok := number(ev.Fields["duration_ms"]); ok {
			m.tickLatency.Observe(v / 1000)
		}
		if v, ok := number(ev.Fields["pending"]); ok {
			m.pending.Set(v)
		}
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

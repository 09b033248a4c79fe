package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrsteele09/go-embedded-app/realtime"
)

const metricsNamespace = "embedded_app"

// Metrics are the protocol counters exposed on /metrics.
type Metrics struct {
	registry       *prometheus.Registry
	callbacks      *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
	statusChecks   *prometheus.CounterVec
	revocations    *prometheus.CounterVec
	realtimeEvents *prometheus.CounterVec
	verifyFailures prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_callbacks_total",
			Help:      "OAuth callbacks by terminal state.",
		}, []string{"state"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_guard_decisions_total",
			Help:      "Session guard outcomes for page requests.",
		}, []string{"decision"}),
		statusChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_status_checks_total",
			Help:      "Session status checks by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "revocations_total",
			Help:      "Sessions revoked, by source.",
		}, []string{"source"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "realtime_events_total",
			Help:      "Realtime channel events, by kind.",
		}, []string{"kind"}),
		verifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callback_verify_failures_total",
			Help:      "Post-exchange platform verifications that failed.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.callbacks,
		m.guardDecisions,
		m.statusChecks,
		m.revocations,
		m.realtimeEvents,
		m.verifyFailures,
	)
	return m
}

func (m *Metrics) Callback(state CallbackState) {
	m.callbacks.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) GuardDecision(decision string) {
	m.guardDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) StatusCheck(result string) {
	m.statusChecks.WithLabelValues(result).Inc()
}

// Revoked counts a revocation. source is "webhook" or "realtime:<kind>".
func (m *Metrics) Revoked(source string) {
	m.revocations.WithLabelValues(source).Inc()
}

// ObserveRealtime counts events from a hub subscription until it is closed.
func (m *Metrics) ObserveRealtime(events <-chan realtime.Event) {
	for ev := range events {
		m.realtimeEvents.WithLabelValues(ev.Kind.String()).Inc()
	}
}

func (m *Metrics) VerifyFailed() {
	m.verifyFailures.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

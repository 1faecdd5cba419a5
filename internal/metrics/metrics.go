// Package metrics wraps the prometheus counters/gauges the server
// exposes for operational visibility (SPEC_FULL.md §4.9). Grounded on the
// retrieval pack's use of github.com/prometheus/client_golang
// (m-lab/tcp-info); no core logic depends on a Metrics value existing,
// so every method is nil-safe and the zero value (*Metrics)(nil) is a
// legal no-op collaborator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process's collectors. Construct one with New and
// register it with a prometheus.Registerer; pass nil anywhere a Metrics
// is expected to disable instrumentation entirely.
type Metrics struct {
	SessionsTotal         *prometheus.CounterVec
	SessionsActive        prometheus.Gauge
	EventsPersistedTotal  prometheus.Counter
	EventsRejectedTotal   *prometheus.CounterVec
	RateLimitRejections   prometheus.Counter
	FrameDecodeErrorsTotal *prometheus.CounterVec
}

// New constructs a Metrics value with all collectors created but not yet
// registered with any registry.
func New() *Metrics {
	return &Metrics{
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_sessions_total",
			Help: "Sessions accepted, labeled by transport (tcp/udp).",
		}, []string{"transport"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_sessions_active",
			Help: "Currently active sessions.",
		}),
		EventsPersistedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_events_persisted_total",
			Help: "Events successfully persisted.",
		}),
		EventsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_events_rejected_total",
			Help: "Events rejected, labeled by reason.",
		}, []string{"reason"}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_rate_limit_rejections_total",
			Help: "Sessions rejected for exceeding a connection quota.",
		}),
		FrameDecodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_frame_decode_errors_total",
			Help: "Frame decode failures, labeled by error kind.",
		}, []string{"kind"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		m.SessionsTotal, m.SessionsActive, m.EventsPersistedTotal,
		m.EventsRejectedTotal, m.RateLimitRejections, m.FrameDecodeErrorsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) SessionOpened(transport string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(transport).Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) EventPersisted() {
	if m == nil {
		return
	}
	m.EventsPersistedTotal.Inc()
}

func (m *Metrics) EventRejected(reason string) {
	if m == nil {
		return
	}
	m.EventsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

func (m *Metrics) FrameDecodeError(kind string) {
	if m == nil {
		return
	}
	m.FrameDecodeErrorsTotal.WithLabelValues(kind).Inc()
}

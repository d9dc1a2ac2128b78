package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-intake/internal/analytics"
)

// ClinicMetrics mirrors analytics events and delivery outcomes into
// Prometheus.
type ClinicMetrics struct {
	eventsTotal    *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	sinkTotal      *prometheus.CounterVec
	activeSessions prometheus.Gauge
	handleLatency  *prometheus.HistogramVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Conversation analytics events by kind",
		}, []string{"kind"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Outbound message delivery attempts",
		}, []string{"status"}),
		sinkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification sink deliveries",
		}, []string{"sink", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held by the session store",
		}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "handle_seconds",
			Help:      "Time spent handling one inbound message, lock wait included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.outboundTotal, m.sinkTotal, m.activeSessions, m.handleLatency)
	return m
}

// Record satisfies the engine's event recorder so it can sit beside the
// analytics collector.
func (m *ClinicMetrics) Record(evt analytics.Event) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(evt.Kind)).Inc()
}

func (m *ClinicMetrics) ObserveOutbound(err error) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status(err)).Inc()
}

func (m *ClinicMetrics) ObserveSink(sink string, err error) {
	if m == nil {
		return
	}
	m.sinkTotal.WithLabelValues(sink, status(err)).Inc()
}

func (m *ClinicMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *ClinicMetrics) ObserveHandle(route string, seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.WithLabelValues(route).Observe(seconds)
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// Package metrics exposes router counters in Prometheus format.
//
// All recording methods are safe on a nil *Metrics so components can be
// built without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "easymo_router"

// Metrics groups every collector the router records to.
type Metrics struct {
	inbound         *prometheus.CounterVec
	classifications *prometheus.CounterVec
	classifyLatency prometheus.Histogram
	responses       *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	learnerRuns     *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
}

// New registers the router collectors (plus Go and process collectors) on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound webhook messages by gate outcome.",
		}, []string{"outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifications by source and domain.",
		}, []string{"source", "domain"}),
		classifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_service_seconds",
			Help:      "Latency of the external classification service.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Replies selected by response type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by result.",
		}, []string{"result"}),
		learnerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preference_learner_runs_total",
			Help:      "Preference learner passes by result.",
		}, []string{"result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_cache_evictions_total",
			Help:      "Expired transaction cache entries removed by the janitor.",
		}),
	}
	reg.MustRegister(
		m.inbound,
		m.classifications,
		m.classifyLatency,
		m.responses,
		m.deliveries,
		m.learnerRuns,
		m.cacheEvictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Inbound(outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Classified(source, domain string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(source, domain).Inc()
}

func (m *Metrics) ObserveClassifier(d time.Duration) {
	if m == nil {
		return
	}
	m.classifyLatency.Observe(d.Seconds())
}

func (m *Metrics) Response(kind string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) LearnerRun(result string) {
	if m == nil {
		return
	}
	m.learnerRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheEvicted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}

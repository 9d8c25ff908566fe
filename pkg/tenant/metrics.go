package tenant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for tenant resolution and access decisions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions  *prometheus.CounterVec
	resolution *prometheus.HistogramVec
	leaks      prometheus.Counter
}

// NewMetrics creates the tenant metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenant_access_decisions_total",
				Help: "Tenant access decisions by outcome",
			},
			[]string{"decision", "reason", "source"},
		),
		resolution: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenant_resolution_duration_seconds",
				Help:    "Time spent resolving the tenant of a request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		leaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_context_leaks_total",
			Help: "Requests that started with a tenant already bound",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.decisions, m.resolution, m.leaks)
	}

	return m
}

func (m *Metrics) observeResolution(source Source, d time.Duration) {
	if m == nil {
		return
	}
	m.resolution.WithLabelValues(string(source)).Observe(d.Seconds())
}

func (m *Metrics) countDecision(kind DecisionKind, reason Reason, source Source) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(kind), string(reason), string(source)).Inc()
}

func (m *Metrics) countLeak() {
	if m == nil {
		return
	}
	m.leaks.Inc()
}

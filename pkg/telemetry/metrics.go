package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the tenancy engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Activations    *prometheus.CounterVec
	ActiveContexts prometheus.Gauge
	ResolverLookup *prometheus.CounterVec
	Provisioning   *prometheus.CounterVec
	JobRuns        *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Activations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multistore",
			Subsystem: "tenancy",
			Name:      "activations_total",
			Help:      "Tenant context activations by result.",
		}, []string{"result"}), // result: ok, already_active, inactive, not_found, error
		ActiveContexts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "multistore",
			Subsystem: "tenancy",
			Name:      "active_contexts",
			Help:      "Units of work currently bound to a tenant.",
		}),
		ResolverLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multistore",
			Subsystem: "resolver",
			Name:      "lookups_total",
			Help:      "Domain resolutions by cache result.",
		}, []string{"result"}), // result: hit, miss, bypass
		Provisioning: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multistore",
			Subsystem: "tenancy",
			Name:      "provisioning_total",
			Help:      "Tenant lifecycle operations by operation and result.",
		}, []string{"op", "result"}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multistore",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs per tenant by job and result.",
		}, []string{"job", "result"}),
	}
}

func (m *Metrics) Activation(result string) {
	if m == nil {
		return
	}
	m.Activations.WithLabelValues(result).Inc()
}

func (m *Metrics) Bound() {
	if m == nil {
		return
	}
	m.ActiveContexts.Inc()
}

func (m *Metrics) Unbound() {
	if m == nil {
		return
	}
	m.ActiveContexts.Dec()
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.ResolverLookup.WithLabelValues(result).Inc()
}

func (m *Metrics) Lifecycle(op string, err error) {
	if m == nil {
		return
	}
	m.Provisioning.WithLabelValues(op, resultOf(err)).Inc()
}

func (m *Metrics) Job(name string, err error) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(name, resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	ResolverScans *prometheus.CounterVec
	KeyLocks      prometheus.GaugeFunc
}

// NewMetrics creates the collectors and registers them on reg.
// locks may be nil, in which case the key lock gauge is not registered.
func NewMetrics(reg prometheus.Registerer, locks *KeyLocks) (*Metrics, error) {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "husk",
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"domain", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "husk",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Wall time of reconciliation cycles, lock wait included.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"domain"}),
		ResolverScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "husk",
			Subsystem: "resolver",
			Name:      "scans_total",
			Help:      "Identity resolver scans by result.",
		}, []string{"domain", "result"}),
	}

	collectors := []prometheus.Collector{m.Outcomes, m.Duration, m.ResolverScans}
	if locks != nil {
		m.KeyLocks = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "husk",
			Subsystem: "reconcile",
			Name:      "key_locks",
			Help:      "Keys with reconciliation in flight or queued.",
		}, func() float64 { return float64(locks.Len()) })
		collectors = append(collectors, m.KeyLocks)
	}

	if reg != nil {
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeOutcome(domain string, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(domain, outcome.String()).Inc()
	m.Duration.WithLabelValues(domain).Observe(elapsed.Seconds())
}

func (m *Metrics) observeScan(domain, result string) {
	if m == nil {
		return
	}
	m.ResolverScans.WithLabelValues(domain, result).Inc()
}

package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return testutil.ToFloat64(vec.WithLabelValues(labels...))
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := NewMetrics(reg, NewKeyLocks())
	require.NoError(t, err)

	m.observeOutcome("board", OutcomeCreated, 0)
	m.observeScan("board", "hit")

	count, err := testutil.GatherAndCount(reg,
		"husk_reconcile_outcomes_total",
		"husk_reconcile_duration_seconds",
		"husk_resolver_scans_total",
		"husk_reconcile_key_locks",
	)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNewMetrics_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, nil)
	require.NoError(t, err)

	_, err = NewMetrics(reg, nil)
	assert.Error(t, err)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeOutcome("board", OutcomeNoOp, 0)
		m.observeScan("board", "miss")
	})
}

func TestMetrics_KeyLockGauge(t *testing.T) {
	locks := NewKeyLocks()
	m, err := NewMetrics(nil, locks)
	require.NoError(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.KeyLocks))
	locks.retain("k")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyLocks))
	locks.release("k")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.KeyLocks))
}

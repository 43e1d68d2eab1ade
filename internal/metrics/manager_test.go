package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRegistersCollectors(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.CounterWrites.WithLabelValues("workouts", "add").Inc()
	m.CounterWrites.WithLabelValues("workouts", "add").Inc()
	m.CounterSessionTransitions.WithLabelValues(TransitionBegin).Inc()
	m.GaugeSessionActive.Set(1)
	m.HistFlushDuration.Observe(0.002)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterWrites.WithLabelValues("workouts", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GaugeSessionActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["repbook_test_record_writes"])
	assert.True(t, names["repbook_test_session_active"])
	assert.True(t, names["repbook_test_jsonl_flush_duration_seconds"])
}

func TestManagersAreIndependent(t *testing.T) {
	a := NewTestManager()
	b := NewTestManager()
	a.CounterLogsPurged.Add(3)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CounterLogsPurged))
}

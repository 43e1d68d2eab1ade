package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session transition label values.
const (
	TransitionBegin   = "begin"
	TransitionFinish  = "finish"
	TransitionDiscard = "discard"
)

type Manager struct {
	// counters
	CounterWrites             *prometheus.CounterVec
	CounterValidationFailures *prometheus.CounterVec
	CounterImportSkipped      *prometheus.CounterVec
	CounterSessionTransitions *prometheus.CounterVec
	CounterLogsPurged         prometheus.Counter

	// gauges
	GaugeSessionActive prometheus.Gauge

	// histograms
	HistFlushDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("repbook", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("repbook", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterWrites := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "record_writes",
		Help:      "The total number of record writes by table and operation",
	}, []string{"table", "op"})
	counterValidationFailures := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "validation_failures",
		Help:      "The total number of records rejected by validation",
	}, []string{"table"})
	counterImportSkipped := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "import_skipped",
		Help:      "The total number of records skipped during imports",
	}, []string{"table"})
	counterSessionTransitions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_transitions",
		Help:      "The total number of workout session transitions",
	}, []string{"transition"})
	counterLogsPurged := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "logs_purged",
		Help:      "The total number of log entries removed by retention",
	})

	gaugeSessionActive := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_active",
		Help:      "Shows whether a workout session is in progress",
	})

	histFlushDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01,
				0.05, 0.1, 0.5, 1, 5,
			},
			Name: "jsonl_flush_duration_seconds",
			Help: "Duration of persisting pending writes to JSONL files",
		},
	)

	return &Manager{
		CounterWrites:             counterWrites,
		CounterValidationFailures: counterValidationFailures,
		CounterImportSkipped:      counterImportSkipped,
		CounterSessionTransitions: counterSessionTransitions,
		CounterLogsPurged:         counterLogsPurged,
		GaugeSessionActive:        gaugeSessionActive,
		HistFlushDuration:         histFlushDuration,
	}
}

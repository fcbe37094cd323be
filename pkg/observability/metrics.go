package observability

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an observer that records tree activity as Prometheus collectors.
type Metrics struct {
	events       *prometheus.CounterVec
	logs         *prometheus.CounterVec
	stateUpdates prometheus.Counter
	treeChanges  prometheus.Counter
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of events dispatched, by event type.",
			},
			[]string{"type"},
		),
		logs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_entries_total",
				Help:      "Total number of node log entries, by level.",
			},
			[]string{"level"},
		),
		stateUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_updates_total",
			Help:      "Total number of captured state snapshots.",
		}),
		treeChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_changes_total",
			Help:      "Total number of structural tree notifications.",
		}),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of steps run through RunStep.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"step"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_failures_total",
				Help:      "Total number of failed steps.",
			},
			[]string{"step"},
		),
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.events, m.logs, m.stateUpdates, m.treeChanges, m.stepDuration, m.stepFailures}
}

// RegisterIndexSize exposes a gauge that reports size() at scrape time,
// typically the length of a debugger index.
func RegisterIndexSize(reg prometheus.Registerer, namespace string, size func() int) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_nodes",
			Help:      "Number of nodes currently held by the tree index.",
		},
		func() float64 { return float64(size()) },
	)
	if err := reg.Register(gauge); err != nil {
		return fmt.Errorf("failed to register index gauge: %w", err)
	}
	return nil
}

func (m *Metrics) OnLog(entry domain.LogEntry) {
	m.logs.WithLabelValues(entry.Level.String()).Inc()
}

func (m *Metrics) OnEvent(event domain.Event) {
	m.events.WithLabelValues(string(event.Kind())).Inc()

	if ev, ok := event.(domain.StepEnd); ok {
		m.stepDuration.WithLabelValues(ev.Step).Observe(ev.Duration.Seconds())
		if ev.Err != nil {
			m.stepFailures.WithLabelValues(ev.Step).Inc()
		}
	}
}

func (m *Metrics) OnStateUpdated(*domain.Node) {
	m.stateUpdates.Inc()
}

func (m *Metrics) OnTreeChanged(*domain.Node) {
	m.treeChanges.Inc()
}

// EventCounter returns the counter for one event type.
func (m *Metrics) EventCounter(kind domain.EventType) prometheus.Counter {
	return m.events.WithLabelValues(string(kind))
}

// StateUpdates returns the state update counter.
func (m *Metrics) StateUpdates() prometheus.Counter { return m.stateUpdates }

// TreeChanges returns the structural notification counter.
func (m *Metrics) TreeChanges() prometheus.Counter { return m.treeChanges }

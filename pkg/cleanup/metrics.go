package cleanup

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Group outcomes recorded by the groups counter.
const (
	OutcomeCleared = "cleared"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics counts cleanup progress. A nil *Metrics records nothing.
type Metrics struct {
	itemsDeleted *prometheus.CounterVec
	groups       *prometheus.CounterVec
}

// NewMetrics creates the cleanup counters and registers them with registry.
// Counters already registered by an earlier call are reused.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	itemsDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapvault",
		Subsystem: "cleanup",
		Name:      "items_deleted_total",
		Help:      "Objects or rows deleted by the cleanup engine",
	}, []string{"kind"})

	groups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapvault",
		Subsystem: "cleanup",
		Name:      "groups_total",
		Help:      "Namespaces or tables visited by the cleanup engine, by outcome",
	}, []string{"kind", "outcome"})

	var err error
	if itemsDeleted, err = register(registry, itemsDeleted); err != nil {
		return nil, err
	}
	if groups, err = register(registry, groups); err != nil {
		return nil, err
	}
	return &Metrics{itemsDeleted: itemsDeleted, groups: groups}, nil
}

func register(registry prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := registry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) itemDeleted(kind string) {
	if m == nil {
		return
	}
	m.itemsDeleted.WithLabelValues(kind).Inc()
}

func (m *Metrics) group(kind, outcome string) {
	if m == nil {
		return
	}
	m.groups.WithLabelValues(kind, outcome).Inc()
}

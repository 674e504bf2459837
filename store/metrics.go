package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus counters a Store reports to. A nil *Metrics
// records nothing.
type Metrics struct {
	EntitiesCreated prometheus.Counter
	EntitiesDeleted prometheus.Counter
	Conflicts       *prometheus.CounterVec
}

// NewMetrics creates the store counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_store_entities_created_total",
			Help: "Total number of timetable entities written to the store",
		}),
		EntitiesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_store_entities_deleted_total",
			Help: "Total number of timetable entities marked for deletion",
		}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_store_conflicts_total",
			Help: "Total number of rejected writes by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.EntitiesCreated, m.EntitiesDeleted, m.Conflicts)
	return m
}

func (m *Metrics) created() {
	if m != nil {
		m.EntitiesCreated.Inc()
	}
}

func (m *Metrics) deleted() {
	if m != nil {
		m.EntitiesDeleted.Inc()
	}
}

// conflict counts err when it is one of the store's rejection errors.
func (m *Metrics) conflict(err error) {
	if m == nil || err == nil {
		return
	}
	var reason string
	switch err {
	case ErrParentNotFound:
		reason = "parent_not_found"
	case ErrAlreadyExists:
		reason = "already_exists"
	case ErrDuplicateValue:
		reason = "duplicate_value"
	case ErrConcurrentModification:
		reason = "concurrent_modification"
	case ErrHasChildren:
		reason = "has_children"
	default:
		return
	}
	m.Conflicts.WithLabelValues(reason).Inc()
}

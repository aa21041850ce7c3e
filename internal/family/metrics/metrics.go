package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the family module.
// Tracks reconciliation outcomes and critical path durations.
type Metrics struct {
	MembersCreated    prometheus.Counter
	MembersLinked     prometheus.Counter
	AlreadyLinked     prometheus.Counter
	Conflicts         prometheus.Counter
	MembersUpdated    prometheus.Counter
	MembersUnlinked   prometheus.Counter
	OrphansRemoved    prometheus.Counter
	AddMemberDuration prometheus.Histogram
	ListDuration      prometheus.Histogram
}

// New creates a new Metrics instance with all family module metrics registered.
func New() *Metrics {
	return &Metrics{
		MembersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_members_created_total",
			Help: "Total number of family member records created",
		}),
		MembersLinked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_members_linked_total",
			Help: "Total number of links added to existing family members",
		}),
		AlreadyLinked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_members_already_linked_total",
			Help: "Total number of idempotent re-submissions for an existing link",
		}),
		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_identity_conflicts_total",
			Help: "Total number of submissions rejected by identity conflict checks",
		}),
		MembersUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_members_updated_total",
			Help: "Total number of family member updates applied",
		}),
		MembersUnlinked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_members_unlinked_total",
			Help: "Total number of links removed from family members",
		}),
		OrphansRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinlink_family_orphans_removed_total",
			Help: "Total number of unreferenced family member records deleted",
		}),
		AddMemberDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kinlink_family_add_member_duration_seconds",
			Help:    "Duration of AddMember operations (lookup, classify, mutate)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kinlink_family_list_duration_seconds",
			Help:    "Duration of ListMembers operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveAddMember records the duration of an AddMember operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAddMember(start time.Time) {
	m.AddMemberDuration.Observe(time.Since(start).Seconds())
}

// ObserveList records the duration of a ListMembers operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}

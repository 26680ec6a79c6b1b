package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsUpserted counts attendance records written by the reconciler, by op (created|updated).
	RecordsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroll",
		Name:      "attendance_records_upserted_total",
		Help:      "Attendance records written during roster reconciliation.",
	}, []string{"op"})

	// RosterSaves counts roster reconciliation calls by result (ok|error).
	RosterSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroll",
		Name:      "roster_saves_total",
		Help:      "Roster save requests by result.",
	}, []string{"result"})

	// ReconcileDuration observes wall time of one roster reconciliation.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "classroll",
		Name:      "reconcile_duration_seconds",
		Help:      "Time spent reconciling one roster submission.",
		Buckets:   prometheus.DefBuckets,
	})

	// SummaryCache counts summary cache lookups by result (hit|miss|error).
	SummaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroll",
		Name:      "summary_cache_lookups_total",
		Help:      "Attendance summary cache lookups.",
	}, []string{"result"})

	// AlertsCreated counts absence alerts created by the worker.
	AlertsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "classroll",
		Name:      "absence_alerts_created_total",
		Help:      "Absence alert notifications created.",
	})

	// QueueMessages counts processed queue messages by type and result.
	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroll",
		Name:      "queue_messages_total",
		Help:      "Queue messages handled by the worker.",
	}, []string{"type", "result"})
)

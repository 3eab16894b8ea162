package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notifier_events_processed_total",
		Help: "Total number of ledger events handed to a fan-out handler, labelled by variant.",
	}, []string{"event_type"})

	EventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circle_notifier_events_skipped_total",
		Help: "Total number of malformed ledger events skipped by the fan-out engine.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notifier_notifications_sent_total",
		Help: "Total number of push notifications delivered, labelled by notification type.",
	}, []string{"type"})

	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notifier_notifications_failed_total",
		Help: "Total number of per-recipient delivery failures, labelled by reason.",
	}, []string{"reason"})

	PollRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notifier_poll_runs_total",
		Help: "Total number of poll cycles, labelled by outcome (ok, skipped, failed).",
	}, []string{"outcome"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "circle_notifier_poll_duration_seconds",
		Help:    "Wall-clock duration of a full poll cycle.",
		Buckets: prometheus.DefBuckets,
	})

	DedupKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circle_notifier_dedup_keys",
		Help: "Current size of the scheduler's dedup key registry.",
	})
)

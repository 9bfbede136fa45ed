package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_alarm",
			Subsystem: "dispatcher",
			Name:      "delivered_total",
			Help:      "Notifications handed to the notifier successfully.",
		},
		[]string{"kind"},
	)

	deliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_alarm",
			Subsystem: "dispatcher",
			Name:      "delivery_failures_total",
			Help:      "Notifications the notifier rejected after all retries.",
		},
		[]string{"kind"},
	)

	reconcileFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "habit_alarm",
			Subsystem: "dispatcher",
			Name:      "reconcile_failures_total",
			Help:      "Delivered notifications the handler failed to reconcile.",
		},
	)

	deliveryLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "habit_alarm",
			Subsystem: "dispatcher",
			Name:      "delivery_lag_seconds",
			Help:      "Delay between a timer's fire time and its delivery.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		},
	)
)

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RemindersFired counts notifications handed to the gate and shown.
	RemindersFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "daycard",
		Name:      "reminders_fired_total",
		Help:      "Event reminders displayed.",
	})

	// RemindersSkipped counts matched events that did not produce a
	// notification, by reason (permission, duplicate).
	RemindersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daycard",
		Name:      "reminders_skipped_total",
		Help:      "Event reminders matched but not displayed.",
	}, []string{"reason"})

	// RemoteRequests counts calls to remote collaborators by outcome.
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daycard",
		Name:      "remote_requests_total",
		Help:      "Requests to remote calendar and task collaborators.",
	}, []string{"collaborator", "outcome"})

	// EventsLoaded reports the size of the Event Store after the last refresh.
	EventsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "daycard",
		Name:      "events_loaded",
		Help:      "Events held for the current day.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

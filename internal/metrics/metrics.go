// Package metrics defines the Prometheus collectors for the automation server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	// SessionActive is 1 while a session is running or paused.
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "automation_session_active",
			Help: "Whether an automation session is currently active (running or paused)",
		},
	)

	// SessionsEndedTotal counts sessions reaching a terminal status.
	SessionsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_sessions_ended_total",
			Help: "Sessions that reached a terminal status, by status",
		},
		[]string{"status"},
	)

	// ApplicationsTotal counts application outcomes.
	ApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_applications_total",
			Help: "Job applications processed, by outcome",
		},
		[]string{"status"},
	)
)

// Worker adapter metrics
var (
	// WorkerMessagesTotal counts structured worker messages by type.
	WorkerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_total",
			Help: "Structured worker messages parsed, by type",
		},
		[]string{"type"},
	)

	// WorkerParseFailuresTotal counts malformed structured lines.
	WorkerParseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_parse_failures_total",
			Help: "Worker output lines carrying the structured marker that failed to parse",
		},
	)
)

// Broadcaster metrics
var (
	// BroadcastSubscribers tracks the number of live subscribers.
	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Number of live event subscribers",
		},
	)

	// BroadcastEventsTotal counts published events by type.
	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Events published to the broadcaster, by type",
		},
		[]string{"type"},
	)

	// BroadcastDroppedTotal counts subscribers dropped for not keeping up.
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_subscribers_total",
			Help: "Subscribers removed because their channel was full or closed",
		},
	)
)

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	actionsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uptend_sync",
			Name:      "actions_enqueued_total",
			Help:      "Actions added to the offline queue.",
		},
	)

	actionsSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uptend_sync",
			Name:      "actions_synced_total",
			Help:      "Queued actions replayed successfully.",
		},
	)

	actionsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uptend_sync",
			Name:      "actions_dropped_total",
			Help:      "Queued actions evicted at the retry cap.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uptend_sync",
			Name:      "queue_depth",
			Help:      "Actions currently pending replay.",
		},
	)

	socketReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uptend_sync",
			Name:      "socket_reconnects_total",
			Help:      "Tracking socket reconnect attempts.",
		},
	)

	connectivityTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uptend_sync",
			Name:      "connectivity_transitions_total",
			Help:      "Connectivity transitions by direction.",
		},
		[]string{"direction"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			actionsEnqueued,
			actionsSynced,
			actionsDropped,
			queueDepth,
			socketReconnects,
			connectivityTransitions,
		)
	})
}

// IncEnqueued counts a newly queued action.
func IncEnqueued() { actionsEnqueued.Inc() }

// AddSynced counts actions replayed successfully in one sync cycle.
func AddSynced(n int) { actionsSynced.Add(float64(n)) }

// IncDropped counts an action evicted at the retry cap.
func IncDropped() { actionsDropped.Inc() }

// SetQueueDepth records the queue length after a mutation.
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// IncReconnect counts a tracking socket reconnect attempt.
func IncReconnect() { socketReconnects.Inc() }

// IncTransition counts a connectivity transition ("online" or "offline").
func IncTransition(direction string) {
	connectivityTransitions.WithLabelValues(direction).Inc()
}

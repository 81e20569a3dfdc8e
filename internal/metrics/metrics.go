// Package metrics exposes Prometheus instrumentation for the crowd
// navigation engine (E4), grounded on the teacher's observability.go:
// package-level promauto collectors with bounded cardinality (no
// per-agent labels).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crowdnav_tick_duration_seconds",
		Help:    "Time spent executing one tick with active agents (pending field rebuild, C7+C8+C9, snapshot)",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	rebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crowdnav_rebuild_duration_seconds",
		Help:    "Time spent rebuilding a field stage",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"stage"}) // bounded: "cost", "integration", "direction"

	activeAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crowdnav_active_agents",
		Help: "Current number of active agents",
	})

	poolExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdnav_pool_exhausted_total",
		Help: "Total spawn attempts rejected due to pool exhaustion",
	})

	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crowdnav_events_dropped_total",
		Help: "Total warning events dropped to rate limiting or buffer overflow",
	})

	agentFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdnav_agent_faults_total",
		Help: "Total per-agent job faults caught and isolated",
	}, []string{"job"}) // bounded: "C7", "C8", "C9"
)

// ObserveTick records the wall-clock duration of one tick.
func ObserveTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// ObserveRebuild records the wall-clock duration of one field rebuild
// stage ("cost", "integration", or "direction").
func ObserveRebuild(stage string, d time.Duration) {
	rebuildDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetActiveAgents updates the active-agent gauge.
func SetActiveAgents(n int) { activeAgents.Set(float64(n)) }

// IncPoolExhausted increments the pool-exhaustion counter.
func IncPoolExhausted() { poolExhaustedTotal.Inc() }

// AddEventsDropped adds n to the dropped-events counter.
func AddEventsDropped(n uint64) { eventsDroppedTotal.Add(float64(n)) }

// IncAgentFault increments the per-job fault counter.
func IncAgentFault(job string) { agentFaultsTotal.WithLabelValues(job).Inc() }

// Package telemetry holds the process-wide Prometheus metrics. Counters only,
// global and label-bounded, so they are safe to touch from hot paths.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache reads served from a live entry, by policy",
	}, []string{"policy"})
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache reads that fell through to the backing store, by policy",
	}, []string{"policy"})
	CacheSentinelHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_sentinel_hits_total",
		Help: "Reads answered by the known-absent sentinel without a backing-store call",
	})
	CacheStaleReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_stale_reads_total",
		Help: "Logically expired entries served stale while a rebuild was attempted",
	})
	CacheRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_rebuilds_total",
		Help: "Background cache rebuilds completed",
	})

	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_decisions_total",
		Help: "Admission gate outcomes by result",
	}, []string{"result"})

	LockContention = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lock_contention_total",
		Help: "Distributed lock acquisitions that lost to another holder",
	})

	WorkerProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_processed_total",
		Help: "Order messages processed and acknowledged on the normal path",
	})
	WorkerRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_recovered_total",
		Help: "Order messages replayed from the pending list after a failure",
	})
	WorkerDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_dropped_total",
		Help: "Order messages dropped because the per-user lock was held",
	})
	WorkerInvariantViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_invariant_violations_total",
		Help: "Messages admitted by the gate whose relational stock decrement failed",
	})
)

func init() {
	prometheus.MustRegister(
		CacheHits, CacheMisses, CacheSentinelHits, CacheStaleReads, CacheRebuilds,
		GateDecisions, LockContention,
		WorkerProcessed, WorkerRecovered, WorkerDropped, WorkerInvariantViolations,
	)
}

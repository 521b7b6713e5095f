// Package metrics exposes the small set of Prometheus counters this runtime
// maintains as ambient observability (not named by spec.md, which has no
// Non-goal excluding metrics — only query languages, cross-module time
// sync, bus auth, and live-schema evolution are explicitly out of scope).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SamplesDropped counts samples dropped by the broker: out-of-range
	// schema index, or a live queue that was full.
	SamplesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "databeam",
		Subsystem: "broker",
		Name:      "samples_dropped_total",
		Help:      "Samples dropped by the data broker (bad schema index or full live queue).",
	})

	// CaptureBytesWritten counts serialized sample bytes written to the
	// capture log.
	CaptureBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "databeam",
		Subsystem: "broker",
		Name:      "capture_bytes_written_total",
		Help:      "Bytes of serialized sample data written to the capture log.",
	})

	// QueryTimeouts counts transport queries that returned empty because
	// their deadline elapsed.
	QueryTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "databeam",
		Subsystem: "transport",
		Name:      "query_timeouts_total",
		Help:      "Transport queries that timed out waiting for a reply.",
	})
)

func init() {
	prometheus.MustRegister(SamplesDropped, CaptureBytesWritten, QueryTimeouts)
}

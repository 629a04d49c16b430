/*
Package metrics implements collection of the signet performance
metrics: credential cache hits and misses, single flight lock waits,
remote fetch and dispatch latency.

The Default instance is a no-op. Wire NewPrometheus into the options of
the components that should report.
*/
package metrics

import (
	"time"
)

// Keys of the metrics collected by the signet components.
const (
	KeyCacheHit          = "cache.hit"
	KeyCacheMiss         = "cache.miss"
	KeyCacheLockWait     = "cache.lock.wait"
	KeyCacheStoreFailure = "cache.store.failure"
	KeyFetch             = "fetch"
	KeyFetchFailure      = "fetch.failure"
	KeyDispatch          = "dispatch"
	KeyDispatchFailure   = "dispatch.failure"
)

// Metrics is the collector interface used by the signet components.
type Metrics interface {
	// IncCounter increments the counter identified by key.
	IncCounter(key string)

	// MeasureSince records the elapsed time since start under key.
	MeasureSince(key string, start time.Time)
}

// Default is the metrics instance used by components that were not
// configured with one. It discards all values.
var Default Metrics = &Noop{}

// Noop discards all metrics.
type Noop struct{}

func (*Noop) IncCounter(string) {}

func (*Noop) MeasureSince(string, time.Time) {}

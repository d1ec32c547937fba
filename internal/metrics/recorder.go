package metrics

import "time"

// Recorder defines observability hooks for collection reloads, cache behavior
// and page serving. Implementations may forward to Prometheus, OpenTelemetry,
// etc. The NoopRecorder is the default when metrics are not configured.
type Recorder interface {
	ObserveReloadDuration(collection string, d time.Duration)
	IncCacheHit(collection string)
	IncCacheMiss(collection string)
	IncCachePruned(collection string, n int)
	ObserveSnapshotDuration(d time.Duration)
	IncRenderOutcome(outcome string) // outcome: success|notfound|error
	ObserveFreezeDuration(d time.Duration)
	IncFreezeOutcome(outcome string) // outcome: success|failed
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveReloadDuration(string, time.Duration) {}
func (NoopRecorder) IncCacheHit(string)                          {}
func (NoopRecorder) IncCacheMiss(string)                         {}
func (NoopRecorder) IncCachePruned(string, int)                  {}
func (NoopRecorder) ObserveSnapshotDuration(time.Duration)       {}
func (NoopRecorder) IncRenderOutcome(string)                     {}
func (NoopRecorder) ObserveFreezeDuration(time.Duration)         {}
func (NoopRecorder) IncFreezeOutcome(string)                     {}

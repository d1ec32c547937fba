package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	reloadDuration   *prom.HistogramVec
	cacheHits        *prom.CounterVec
	cacheMisses      *prom.CounterVec
	cachePruned      *prom.CounterVec
	snapshotDuration prom.Histogram
	renderOutcome    *prom.CounterVec
	freezeDuration   prom.Histogram
	freezeOutcome    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.reloadDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "flatsite",
			Name:      "reload_duration_seconds",
			Help:      "Duration of collection reloads",
			Buckets:   prom.DefBuckets,
		}, []string{"collection"})
		pr.cacheHits = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flatsite",
			Name:      "cache_hits_total",
			Help:      "File cache hits (unchanged modification time)",
		}, []string{"collection"})
		pr.cacheMisses = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flatsite",
			Name:      "cache_misses_total",
			Help:      "File cache misses requiring a re-read and re-parse",
		}, []string{"collection"})
		pr.cachePruned = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flatsite",
			Name:      "cache_pruned_total",
			Help:      "Cache entries removed because their file disappeared",
		}, []string{"collection"})
		pr.snapshotDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "flatsite",
			Name:      "snapshot_build_duration_seconds",
			Help:      "Duration of context snapshot rebuilds",
			Buckets:   prom.DefBuckets,
		})
		pr.renderOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flatsite",
			Name:      "render_outcomes_total",
			Help:      "Page render outcomes by final status",
		}, []string{"outcome"})
		pr.freezeDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "flatsite",
			Name:      "freeze_duration_seconds",
			Help:      "Total freeze duration",
			Buckets:   prom.DefBuckets,
		})
		pr.freezeOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flatsite",
			Name:      "freeze_outcomes_total",
			Help:      "Freeze outcomes by final status",
		}, []string{"outcome"})
		reg.MustRegister(pr.reloadDuration, pr.cacheHits, pr.cacheMisses, pr.cachePruned,
			pr.snapshotDuration, pr.renderOutcome, pr.freezeDuration, pr.freezeOutcome)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveReloadDuration(collection string, d time.Duration) {
	if p == nil || p.reloadDuration == nil {
		return
	}
	p.reloadDuration.WithLabelValues(collection).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCacheHit(collection string) {
	if p == nil || p.cacheHits == nil {
		return
	}
	p.cacheHits.WithLabelValues(collection).Inc()
}

func (p *PrometheusRecorder) IncCacheMiss(collection string) {
	if p == nil || p.cacheMisses == nil {
		return
	}
	p.cacheMisses.WithLabelValues(collection).Inc()
}

func (p *PrometheusRecorder) IncCachePruned(collection string, n int) {
	if p == nil || p.cachePruned == nil || n <= 0 {
		return
	}
	p.cachePruned.WithLabelValues(collection).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveSnapshotDuration(d time.Duration) {
	if p == nil || p.snapshotDuration == nil {
		return
	}
	p.snapshotDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRenderOutcome(outcome string) {
	if p == nil || p.renderOutcome == nil {
		return
	}
	p.renderOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveFreezeDuration(d time.Duration) {
	if p == nil || p.freezeDuration == nil {
		return
	}
	p.freezeDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFreezeOutcome(outcome string) {
	if p == nil || p.freezeOutcome == nil {
		return
	}
	p.freezeOutcome.WithLabelValues(outcome).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

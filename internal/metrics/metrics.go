// Package metrics exposes cache and fetch counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so that several instances can coexist in tests.
type Metrics struct {
	registry     *prometheus.Registry
	cacheLookups *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	fetchLatency prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, expired).",
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_fetches_total",
			Help: "Fetch attempts by outcome (ok, cached, or failure kind).",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "finboard_fetch_latency_seconds",
			Help:    "Latency of fetches that reached the network.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(m.cacheLookups, m.fetches, m.fetchLatency)
	return m
}

// CacheObserver returns a hook for cache.WithObserver.
func (m *Metrics) CacheObserver() cache.Observer {
	return func(_ string, ev cache.Event) {
		m.cacheLookups.WithLabelValues(cacheResult(ev)).Inc()
	}
}

func cacheResult(ev cache.Event) string {
	switch ev {
	case cache.Hit:
		return "hit"
	case cache.Expired:
		return "expired"
	default:
		return "miss"
	}
}

// RecordFetch implements fetch.Recorder.
func (m *Metrics) RecordFetch(_ context.Context, a fetch.Attempt) {
	switch {
	case a.Cached:
		m.fetches.WithLabelValues("cached").Inc()
		return
	case a.Kind != "":
		m.fetches.WithLabelValues(string(a.Kind)).Inc()
	default:
		m.fetches.WithLabelValues("ok").Inc()
	}
	m.fetchLatency.Observe(a.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package spatial

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const kindLabel = "kind"

var (
	spatialQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_queries_total",
		Help: "The number of spatial queries answered, by query kind.",
	}, []string{
		kindLabel,
	})

	spatialQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_query_seconds",
		Help:    "The time to answer a spatial query from the index on a cache miss.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{
		kindLabel,
	})

	spatialCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_cache_hits_total",
		Help: "The number of queries answered from the query cache.",
	}, []string{
		kindLabel,
	})

	spatialCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_cache_misses_total",
		Help: "The number of queries that fell through to the index.",
	}, []string{
		kindLabel,
	})

	spatialCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_cache_invalidated_entries_total",
		Help: "Cache entries dropped by footprint invalidation after entity movement.",
	})

	spatialCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_cache_evictions_total",
		Help: "Cache entries evicted by the LRU entry ceiling.",
	})

	spatialOutOfBounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_out_of_bounds_inserts_total",
		Help: "Entity registrations whose position fell outside the world bounds.",
	})
)

func instrumentQueryLatency(kind queryKind, start time.Time) {
	spatialQueries.With(prometheus.Labels{kindLabel: kind.String()}).Inc()
	spatialQueryLatency.With(prometheus.Labels{kindLabel: kind.String()}).Observe(time.Since(start).Seconds())
}

func instrumentCacheHit(kind queryKind) {
	spatialQueries.With(prometheus.Labels{kindLabel: kind.String()}).Inc()
	spatialCacheHits.With(prometheus.Labels{kindLabel: kind.String()}).Inc()
}

func instrumentCacheMiss(kind queryKind) {
	spatialCacheMisses.With(prometheus.Labels{kindLabel: kind.String()}).Inc()
}

func instrumentCacheInvalidation(entries int) {
	spatialCacheInvalidations.Add(float64(entries))
}

func instrumentCacheEviction() {
	spatialCacheEvictions.Inc()
}

func instrumentOutOfBounds() {
	spatialOutOfBounds.Inc()
}

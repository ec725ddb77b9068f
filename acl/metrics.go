package acl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acl_cache_hits_total",
		Help: "Total number of match queries answered from the result cache",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acl_cache_misses_total",
		Help: "Total number of match queries that required a rule scan",
	})

	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acl_cache_evictions_total",
		Help: "Total number of result cache entries evicted by LRU pressure",
	})

	matchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "acl_match_duration_seconds",
		Help:    "Duration of cache-miss rule scans in seconds",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
)

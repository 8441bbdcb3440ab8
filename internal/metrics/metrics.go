// Package metrics registers breeze's Prometheus counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breeze_cache_hits_total",
		Help: "The total number of GET requests that found the upload, in the cache or on disk.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breeze_cache_misses_total",
		Help: "The total number of GET requests for an upload found neither in the cache nor on disk.",
	})

	Uploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breeze_uploads_total",
		Help: "The total number of successfully processed uploads.",
	})

	Deletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breeze_deletions_total",
		Help: "The total number of uploads removed via a deletion URL.",
	})

	CacheBytesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breeze_cache_bytes_in_use",
		Help: "The current number of payload bytes held by the in-memory cache.",
	})
)

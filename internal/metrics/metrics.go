// Path: internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UpstreamPages counts search pages successfully fetched from upstream.
var UpstreamPages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "toploras_upstream_pages_total",
	Help: "Total number of search pages fetched from the upstream API",
})

// CacheLookups counts cache reads by result (hit, miss).
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "toploras_cache_lookups_total",
	Help: "Total number of cache lookups by result",
}, []string{"result"})

// ImageDownloads counts cover downloads by outcome (downloaded, skipped, failed).
var ImageDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "toploras_image_downloads_total",
	Help: "Total number of cover image downloads by outcome",
}, []string{"outcome"})

// FetchFailures counts orchestrated fetches that failed during aggregation.
var FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "toploras_fetch_failures_total",
	Help: "Total number of fetches that failed while contacting upstream",
})

// RecordsServed tracks the size of the last result list per cache key.
var RecordsServed = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "toploras_records",
	Help: "Number of records in the last result list for a cache key",
}, []string{"key"})

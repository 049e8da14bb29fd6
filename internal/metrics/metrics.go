// Package metrics declares the Prometheus collectors shared by the store, the
// download scheduler, the thumbnail manager and the updater.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_store_writes_total",
		Help: "Committed store write transactions by operation.",
	}, []string{"op"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_store_errors_total",
		Help: "Store operations that failed with a storage error, by operation.",
	}, []string{"op"})

	BookmarksTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmarks_bookmarks_total",
		Help: "Bookmarks in the store after the last committed write.",
	})

	TagsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmarks_tags_total",
		Help: "Tags referenced by at least one bookmark after the last committed write.",
	})

	DownloadsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmarks_downloads_active",
		Help: "Thumbnail fetches currently running.",
	})

	DownloadsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmarks_downloads_pending",
		Help: "Thumbnail fetches waiting for a free slot.",
	})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_downloads_total",
		Help: "Finished thumbnail fetches by result (succeeded, failed, cancelled).",
	}, []string{"result"})

	ThumbnailCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_thumbnail_cache_total",
		Help: "Thumbnail cache lookups by result (hit, miss).",
	}, []string{"result"})

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_refresh_total",
		Help: "Remote reconciliation runs by result (updated, skipped, failed).",
	}, []string{"result"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookmarks_refresh_duration_seconds",
		Help:    "Time spent reconciling with the remote service.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})
)

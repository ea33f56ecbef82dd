package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deletedEndpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_deleted_endpoints_total",
		Help: "Endpoints removed by subtree deletion",
	})

	deleteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_delete_duration_seconds",
		Help:    "Time to delete one subtree",
		Buckets: prometheus.DefBuckets,
	})

	exportedURLs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_exported_urls_total",
		Help: "Endpoint URLs written by export",
	})
)

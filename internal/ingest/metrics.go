package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	urlsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_ingest_urls_total",
		Help: "URLs with a host folded into the index",
	})

	bytesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_ingest_bytes_total",
		Help: "Source bytes consumed by ingestion",
	})

	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_ingest_flush_duration_seconds",
		Help:    "Time to merge one write batch into the store",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	flushRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_ingest_flush_records",
		Help:    "Records per merged write batch",
		Buckets: []float64{1, 10, 100, 1000, 5000, 10000, 50000},
	})

	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_ingest_runs_total",
		Help: "Ingestion runs by outcome",
	}, []string{"outcome"})
)

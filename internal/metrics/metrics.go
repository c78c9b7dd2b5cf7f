// Package metrics provides Prometheus metrics for the scanner.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmscan_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scan Worker Metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmscan_scans_total",
			Help: "Total number of scan attempts by result",
		},
		[]string{"result"}, // "ok", "collect_error", "persist_error"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cmscan_scan_duration_seconds",
			Help:    "Time taken to scan one watchlist entry end to end",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	OffersCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmscan_offers_collected_total",
			Help: "Total number of offer snapshots persisted",
		},
	)

	WatchlistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmscan_watchlist_active_entries",
			Help: "Number of active watchlist entries in the last cycle",
		},
	)

	// Deal Detection Metrics
	DealAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmscan_deal_alerts_total",
			Help: "Total number of deal alerts emitted",
		},
	)

	BaselineMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmscan_baseline_missing_total",
			Help: "Scans skipped for deal detection because the card had no history",
		},
	)

	// Retention Metrics
	RetentionDeletedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmscan_retention_deleted_rows_total",
			Help: "Rows removed by the retention pruner by table",
		},
		[]string{"table"},
	)
)

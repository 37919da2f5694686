package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crs_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog Metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crs_query_duration_seconds",
			Help:    "Duration of catalog queries in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"domain", "kind"}, // kind: "title", "sample", "keyword"
	)

	QueryResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crs_query_results",
			Help:    "Number of records returned per catalog query",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		},
		[]string{"domain"},
	)

	CatalogRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crs_catalog_rows",
			Help: "Rows loaded per catalog domain",
		},
		[]string{"domain"},
	)

	// Ingestion Metrics
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_ingest_pages_fetched_total",
			Help: "Upstream pages fetched successfully",
		},
		[]string{"source"},
	)

	PagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_ingest_pages_failed_total",
			Help: "Upstream pages that failed after retries",
		},
		[]string{"source"},
	)

	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_ingest_rows_total",
			Help: "Rows collected from upstream sources",
		},
		[]string{"source"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordQuery records a catalog lookup
func RecordQuery(domain, kind string, results int, duration time.Duration) {
	QueryDuration.WithLabelValues(domain, kind).Observe(duration.Seconds())
	QueryResults.WithLabelValues(domain).Observe(float64(results))
}

// RecordPage records one upstream page outcome
func RecordPage(source string, rows int, err error) {
	if err != nil {
		PagesFailed.WithLabelValues(source).Inc()
		return
	}
	PagesFetched.WithLabelValues(source).Inc()
	RowsFetched.WithLabelValues(source).Add(float64(rows))
}

// SetCatalogRows publishes the loaded size of a domain
func SetCatalogRows(domain string, rows int) {
	CatalogRows.WithLabelValues(domain).Set(float64(rows))
}

// Package metrics holds the Prometheus collectors for the add-on and the
// /metrics handler. Collectors register with the default registry at init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "e2catalog"

// UpstreamRequests counts receiver requests by endpoint (bouquets, channels, picon) and result (ok, status, error).
var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "upstream_requests_total",
	Help:      "Requests sent to the Enigma2 receiver.",
}, []string{"endpoint", "result"})

// DirectoryLookups counts directory reads by kind (bouquets, channels) and outcome (fresh, refreshed, stale, error).
var DirectoryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "directory_lookups_total",
	Help:      "Bouquet/channel directory reads by cache outcome.",
}, []string{"kind", "outcome"})

// Picons counts picon pipeline results: hit, loaded, failed, disabled.
var Picons = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "picons_total",
	Help:      "Picon pipeline results.",
}, []string{"result"})

// PiconsCached is the number of picons held in memory.
var PiconsCached = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "picons_cached",
	Help:      "Picons currently cached.",
})

// MetaEntries is the number of meta ids registered for stream lookups.
var MetaEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "meta_entries",
	Help:      "Meta ids registered for stream resolution.",
})

// PreloadDuration tracks full preload runs.
var PreloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "preload_duration_seconds",
	Help:      "Duration of a full picon preload.",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
})

// HTTPRequests counts add-on requests by route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "Add-on HTTP requests.",
}, []string{"route", "status"})

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics registers the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HoversTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmaps_hovers_total",
		Help: "Pointer moves handled, by dashboard and result (hit or miss)",
	}, []string{"dashboard", "result"})
	TooltipFeatures = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicmaps_tooltip_features",
		Help:    "Number of features listed in a tooltip",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	}, []string{"dashboard"})
	FilterActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmaps_filter_actions_total",
		Help: "Filter reducer actions applied, by dashboard and action",
	}, []string{"dashboard", "action"})
	ActiveSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "civicmaps_active_sessions",
		Help: "Mounted dashboard sessions",
	}, []string{"dashboard"})
	TileRendersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmaps_tile_renders_total",
		Help: "Overlay tiles rendered, by layer",
	}, []string{"layer"})
	TileRenderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicmaps_tile_render_duration_ms",
		Help:    "Overlay tile render duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"layer"})
	TileCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmaps_tile_cache_total",
		Help: "Tile cache lookups, by layer and result (hit or miss)",
	}, []string{"layer", "result"})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicmaps_http_requests_total",
		Help: "HTTP requests, by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicmaps_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(HoversTotal)
	prometheus.MustRegister(TooltipFeatures)
	prometheus.MustRegister(FilterActionsTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(TileRendersTotal)
	prometheus.MustRegister(TileRenderDurationMs)
	prometheus.MustRegister(TileCacheTotal)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }

package services

import (
	"net/http"
	"time"

	"georetail/backend/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dashboard collectors. Each instance owns its registry
// so several can coexist in tests. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	citiesLoaded   prometheus.Gauge
	rowsSkipped    prometheus.Gauge
	reloadsTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "georetail_filter_queries_total",
			Help: "Filter queries executed against the snapshot",
		}, []string{"kind"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "georetail_query_duration_seconds",
			Help:    "Snapshot query latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "georetail_cache_hits_total",
			Help: "Ranking cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "georetail_cache_misses_total",
			Help: "Ranking cache misses",
		}),
		citiesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "georetail_cities_loaded",
			Help: "Cities in the current snapshot",
		}),
		rowsSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "georetail_rows_skipped",
			Help: "Invalid rows skipped by the last load",
		}),
		reloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "georetail_reloads_total",
			Help: "Dataset reloads by outcome",
		}, []string{"result"}),
		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "georetail_render_duration_seconds",
			Help:    "Map and chart render time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"view"}),
	}
}

func (m *Metrics) ObserveQuery(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(kind).Inc()
	m.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveRender(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(view).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) Loaded(info models.DatasetInfo) {
	if m == nil {
		return
	}
	m.citiesLoaded.Set(float64(info.Cities))
	m.rowsSkipped.Set(float64(info.Skipped))
	m.reloadsTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) ReloadFailed() {
	if m == nil {
		return
	}
	m.reloadsTotal.WithLabelValues("failure").Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

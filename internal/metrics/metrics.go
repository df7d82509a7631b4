// Package metrics exposes Prometheus metrics for dataset loads, filtering
// and rendering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "useit"

// Metrics implements session.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	loadsTotal       *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	datasetSpots     prometheus.Gauge
	skippedRowsTotal prometheus.Counter
	filterCache      *prometheus.CounterVec
	markers          prometheus.Histogram
	staleTotal       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset fetch-and-normalize cycles by result.",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent fetching and normalizing the sheet.",
			Buckets:   prometheus.DefBuckets,
		}),
		datasetSpots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_spots",
			Help:      "Spots in the most recently loaded dataset.",
		}),
		skippedRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_rows_skipped_total",
			Help:      "Rows dropped because their score or coordinates could not be parsed.",
		}),
		filterCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_cache_lookups_total",
			Help:      "Filter stage cache lookups by stage and outcome.",
		}, []string{"stage", "outcome"}),
		markers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "map_markers",
			Help:      "Markers per rendered map.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		staleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_changes_total",
			Help:      "Source file changes that marked sessions for reload.",
		}),
	}
	m.registry.MustRegister(
		m.loadsTotal, m.loadDuration, m.datasetSpots, m.skippedRowsTotal,
		m.filterCache, m.markers, m.staleTotal,
	)
	return m
}

// RegisterSessions exports the live session count read from fn.
func (m *Metrics) RegisterSessions(fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Live browsing sessions.",
	}, func() float64 { return float64(fn()) }))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) DatasetLoaded(d time.Duration, spots, skipped int) {
	m.loadsTotal.WithLabelValues("ok").Inc()
	m.loadDuration.Observe(d.Seconds())
	m.datasetSpots.Set(float64(spots))
	m.skippedRowsTotal.Add(float64(skipped))
}

func (m *Metrics) DatasetLoadFailed(d time.Duration) {
	m.loadsTotal.WithLabelValues("error").Inc()
	m.loadDuration.Observe(d.Seconds())
}

func (m *Metrics) FilterCacheHit(stage string) {
	m.filterCache.WithLabelValues(stage, "hit").Inc()
}

func (m *Metrics) FilterCacheMiss(stage string) {
	m.filterCache.WithLabelValues(stage, "miss").Inc()
}

func (m *Metrics) ViewRendered(markers int) {
	m.markers.Observe(float64(markers))
}

func (m *Metrics) SourceChanged() {
	m.staleTotal.Inc()
}

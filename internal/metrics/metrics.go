// Package metrics exposes feed and search activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmcdole/marquee/internal/domain"
)

const namespace = "marquee"

// Metrics records load and search events. It implements domain.LoadObserver
// and domain.SearchObserver.
type Metrics struct {
	registry *prometheus.Registry

	RowLoadsTotal      *prometheus.CounterVec
	RowLoadDuration    *prometheus.HistogramVec
	RowItems           prometheus.Histogram
	FallbacksTotal     prometheus.Counter
	SearchesTotal      *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
	SearchResultsTotal prometheus.Counter
}

var (
	_ domain.LoadObserver   = (*Metrics)(nil)
	_ domain.SearchObserver = (*Metrics)(nil)
)

// New creates metrics on their own registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowLoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_loads_total",
			Help:      "Row page loads by section, provenance and outcome",
		}, []string{"section", "source", "outcome"}),
		RowLoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_load_duration_seconds",
			Help:      "Time spent loading a row page, cache hits included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		RowItems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_items",
			Help:      "Items returned per row page after filtering",
			Buckets:   []float64{0, 1, 5, 10, 20, 40, 60},
		}),
		FallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Row loads that consulted the secondary source",
		}),
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by mode and outcome",
		}, []string{"mode", "outcome"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent answering a search",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		SearchResultsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Items and people returned by searches",
		}),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsAborted(err):
		return "aborted"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "unavailable"
	}
	return "error"
}

func (m *Metrics) OnLoad(e domain.LoadEvent) {
	source := string(e.Source)
	if source == "" {
		source = "none"
	}
	m.RowLoadsTotal.WithLabelValues(e.Section, source, outcome(e.Err)).Inc()
	m.RowLoadDuration.WithLabelValues(source).Observe(e.Duration.Seconds())
	if e.Err == nil {
		m.RowItems.Observe(float64(e.Items))
	}
	if e.Fallback {
		m.FallbacksTotal.Inc()
	}
}

func (m *Metrics) OnSearch(e domain.SearchEvent) {
	m.SearchesTotal.WithLabelValues(e.Mode, outcome(e.Err)).Inc()
	m.SearchDuration.WithLabelValues(e.Mode).Observe(e.Duration.Seconds())
	m.SearchResultsTotal.Add(float64(e.Results))
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Package observability provides Prometheus metrics for the feed pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/transit-feed/internal/transit"
)

// Metrics holds the pipeline's Prometheus metrics. It implements
// transit.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Resolution metrics
	Resolutions    *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec

	// Derived values
	Points *prometheus.CounterVec

	// Feed metrics
	FeedBuilds   *prometheus.CounterVec
	FeedDuration prometheus.Histogram
	LastFeed     prometheus.Gauge
}

// NewMetrics creates metrics registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "transit_feed"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Body resolutions by category and provenance",
		}, []string{"category", "provenance"}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "source_failures_total",
			Help:      "Source calls that produced no result",
		}, []string{"source"}),
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "source_latency_seconds",
			Help:      "Source call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "ok"}),

		Points: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "evaluated_total",
			Help:      "Symbolic points evaluated by availability",
		}, []string{"available"}),

		FeedBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "builds_total",
			Help:      "Feed builds by status",
		}, []string{"status"}),
		FeedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "build_duration_seconds",
			Help:      "Feed build duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		LastFeed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time of the last completed feed build",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSource(source string, ok bool, elapsed time.Duration) {
	if !ok {
		m.SourceFailures.WithLabelValues(source).Inc()
	}
	m.SourceLatency.WithLabelValues(source, strconv.FormatBool(ok)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveResolution(category transit.Category, provenance transit.Provenance) {
	m.Resolutions.WithLabelValues(string(category), string(provenance)).Inc()
}

func (m *Metrics) ObservePoint(available bool) {
	m.Points.WithLabelValues(strconv.FormatBool(available)).Inc()
}

func (m *Metrics) ObserveFeed(status string, elapsed time.Duration) {
	m.FeedBuilds.WithLabelValues(status).Inc()
	m.FeedDuration.Observe(elapsed.Seconds())
	m.LastFeed.SetToCurrentTime()
}

var _ transit.Recorder = (*Metrics)(nil)

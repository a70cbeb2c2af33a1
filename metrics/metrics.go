// Package metrics exposes pipeline and HTTP counters for Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "dkspot_"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Failure kinds of a pipeline run.
const (
	FailureData  = "data"
	FailureFetch = "fetch"
	FailureOther = "other"
)

type Metrics struct {
	registry *prometheus.Registry

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	lastSuccess      prometheus.Gauge
	runFailures      *prometheus.CounterVec
	fetchErrors      *prometheus.CounterVec
	currentPrice     *prometheus.GaugeVec
	graphRequests    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process wide metrics registered on their own registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		),
		pipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "pipeline_last_success_timestamp_seconds",
				Help: "Unix time of the last chart written",
			},
		),
		runFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_failures_total",
				Help: "Total failed pipeline runs by failure kind",
			},
			[]string{"kind"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_errors_total",
				Help: "Total price fetch errors by zone",
			},
			[]string{"zone"},
		),
		currentPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "price_dkk_per_kwh",
				Help: "First hour price of the latest chart by zone and tax inclusion",
			},
			[]string{"zone", "tax"},
		),
		graphRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "graph_requests_total",
				Help: "Total /graph requests by status code",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.pipelineRuns,
		m.pipelineDuration,
		m.lastSuccess,
		m.runFailures,
		m.fetchErrors,
		m.currentPrice,
		m.graphRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObservePipelineRun(result string, started time.Time, finished time.Time) {
	m.pipelineRuns.WithLabelValues(result).Inc()
	m.pipelineDuration.WithLabelValues(result).Observe(finished.Sub(started).Seconds())
	if result == ResultSuccess {
		m.lastSuccess.Set(float64(finished.Unix()))
	}
}

func (m *Metrics) IncRunFailure(kind string) {
	m.runFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncFetchError(zone string) {
	m.fetchErrors.WithLabelValues(zone).Inc()
}

func (m *Metrics) SetCurrentPrice(zone string, price, priceWithTax float64) {
	m.currentPrice.WithLabelValues(zone, "excluded").Set(price)
	m.currentPrice.WithLabelValues(zone, "included").Set(priceWithTax)
}

func (m *Metrics) IncGraphRequest(status string) {
	m.graphRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

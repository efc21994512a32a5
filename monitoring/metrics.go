// Package monitoring exposes Prometheus metrics for the prediction service.
package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheStats is implemented by ml.CachedRegressor.
type CacheStats interface {
	Hits() uint64
	Misses() uint64
}

// Collector holds all Prometheus metrics
type Collector struct {
	Predictions        *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ModelReloads       *prometheus.CounterVec
	ModelLoaded        prometheus.Gauge

	cacheDesc  *prometheus.Desc
	cacheMu    sync.RWMutex
	cacheStats CacheStats
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "housing_predictions_total",
				Help: "Total number of predictions by outcome",
			},
			[]string{"outcome"}, // ok, client_error, error
		),
		PredictionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "housing_prediction_duration_seconds",
				Help:    "Duration of model inference",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15), // 50µs to ~0.8s
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "housing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "housing_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ModelReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "housing_model_reloads_total",
				Help: "Model artifact load attempts by result",
			},
			[]string{"result"}, // success, failure
		),
		ModelLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "housing_model_loaded",
				Help: "1 when a model is available for inference",
			},
		),
		cacheDesc: prometheus.NewDesc(
			"housing_prediction_cache_total",
			"Prediction cache lookups by result",
			[]string{"result"}, nil,
		),
	}
}

// WatchCache reports hit and miss counts from stats on every scrape.
func (c *Collector) WatchCache(stats CacheStats) {
	c.cacheMu.Lock()
	c.cacheStats = stats
	c.cacheMu.Unlock()
}

func (c *Collector) ObservePrediction(outcome string, elapsed time.Duration) {
	c.Predictions.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		c.PredictionDuration.Observe(elapsed.Seconds())
	}
}

func (c *Collector) ObserveRequest(method, path string, code int, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	c.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveReload is shaped to be passed to ml.Holder.OnReload.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ModelReloads.WithLabelValues("failure").Inc()
		return
	}
	c.ModelReloads.WithLabelValues("success").Inc()
	c.ModelLoaded.Set(1)
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.Predictions.Describe(ch)
	c.PredictionDuration.Describe(ch)
	c.RequestsTotal.Describe(ch)
	c.RequestDuration.Describe(ch)
	c.ModelReloads.Describe(ch)
	c.ModelLoaded.Describe(ch)
	ch <- c.cacheDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.Predictions.Collect(ch)
	c.PredictionDuration.Collect(ch)
	c.RequestsTotal.Collect(ch)
	c.RequestDuration.Collect(ch)
	c.ModelReloads.Collect(ch)
	c.ModelLoaded.Collect(ch)

	c.cacheMu.RLock()
	stats := c.cacheStats
	c.cacheMu.RUnlock()
	if stats != nil {
		ch <- prometheus.MustNewConstMetric(c.cacheDesc, prometheus.CounterValue, float64(stats.Hits()), "hit")
		ch <- prometheus.MustNewConstMetric(c.cacheDesc, prometheus.CounterValue, float64(stats.Misses()), "miss")
	}
}

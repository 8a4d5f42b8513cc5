package metrics

import (
	"io"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Recorder collects pricing and hedging metrics into its own registry.
// It satisfies both pricing.Recorder and hedging.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	// Pricing metrics
	pricingRuns     *prometheus.CounterVec
	pathsSimulated  *prometheus.CounterVec
	pricingDuration *prometheus.HistogramVec

	// Hedging metrics
	hedgeRuns       *prometheus.CounterVec
	hedgeRebalances *prometheus.CounterVec
	hedgeCost       *prometheus.HistogramVec

	errors *prometheus.CounterVec

	// System metrics
	memoryUsageGauge    prometheus.Gauge
	goroutineCountGauge prometheus.Gauge
}

// NewRecorder creates a new metrics recorder backed by a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		pricingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_pricing_runs_total",
				Help: "The total number of completed pricing calls",
			},
			[]string{"variant", "engine"},
		),
		pathsSimulated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_paths_simulated_total",
				Help: "The total number of Monte Carlo paths simulated",
			},
			[]string{"variant"},
		),
		pricingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricer_pricing_duration_seconds",
				Help:    "Pricing call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // From 100us to ~26s
			},
			[]string{"variant", "engine"},
		),

		hedgeRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_hedge_runs_total",
				Help: "The total number of completed hedging simulations",
			},
			[]string{"variant"},
		),
		hedgeRebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_hedge_rebalances_total",
				Help: "The total number of hedge rebalancing dates",
			},
			[]string{"variant"},
		),
		hedgeCost: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricer_hedge_cost",
				Help:    "Replication cost distribution",
				Buckets: prometheus.LinearBuckets(-20, 4, 11),
			},
			[]string{"variant"},
		),

		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_errors_total",
				Help: "Failed pricing and hedging calls by error type",
			},
			[]string{"type"},
		),

		memoryUsageGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_memory_usage_bytes",
				Help: "Heap memory in use by the process in bytes",
			},
		),
		goroutineCountGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricer_goroutine_count",
				Help: "Number of goroutines",
			},
		),
	}
}

// Registry returns the registry the recorder writes to
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordPricing records a completed pricing call
func (r *Recorder) RecordPricing(variant, engine string, paths int, duration time.Duration) {
	r.pricingRuns.WithLabelValues(variant, engine).Inc()
	r.pathsSimulated.WithLabelValues(variant).Add(float64(paths))
	r.pricingDuration.WithLabelValues(variant, engine).Observe(duration.Seconds())
}

// RecordHedge records a completed hedging simulation
func (r *Recorder) RecordHedge(variant string, rebalances int, cost float64) {
	r.hedgeRuns.WithLabelValues(variant).Inc()
	r.hedgeRebalances.WithLabelValues(variant).Add(float64(rebalances))
	r.hedgeCost.WithLabelValues(variant).Observe(cost)
}

// RecordError records a failed call
func (r *Recorder) RecordError(errType string) {
	r.errors.WithLabelValues(errType).Inc()
}

// UpdateRuntimeMetrics samples heap usage and the goroutine count
func (r *Recorder) UpdateRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.memoryUsageGauge.Set(float64(m.HeapAlloc))
	r.goroutineCountGauge.Set(float64(runtime.NumGoroutine()))
}

// WriteText writes every collected metric family in the Prometheus text
// exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

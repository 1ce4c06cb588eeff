// Package metrics records sweep results as Prometheus metrics and writes
// them in the node_exporter textfile format, for batch hosts that have no
// scrape endpoint.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gobeaver/routekit"
)

// Recorder accumulates sweep metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	items       *prometheus.CounterVec
	sweeps      prometheus.Counter
	lastSweep   prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
	failures    prometheus.Gauge
}

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routekit",
			Name:      "items_total",
			Help:      "Routed items by use case, kind and outcome.",
		}, []string{"use_case", "kind", "outcome"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "routekit",
			Name:      "sweeps_total",
			Help:      "Completed sweeps.",
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routekit",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routekit",
			Name:      "last_clean_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep without failures finished.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "routekit",
			Name:      "sweep_duration_seconds",
			Help:      "Sweep wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routekit",
			Name:      "last_sweep_failures",
			Help:      "Items needing attention in the last sweep.",
		}),
	}

	r.registry.MustRegister(r.items, r.sweeps, r.lastSweep, r.lastSuccess, r.duration, r.failures)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe adds one sweep's results.
func (r *Recorder) Observe(report *routekit.RunReport) {
	for _, it := range report.Items {
		r.items.WithLabelValues(it.UseCase, string(it.Kind), string(it.Outcome)).Inc()
	}

	r.sweeps.Inc()
	r.lastSweep.Set(float64(report.Finished.Unix()))
	r.duration.Observe(report.Finished.Sub(report.Started).Seconds())

	failures := report.Failures()
	r.failures.Set(float64(failures))
	if failures == 0 {
		r.lastSuccess.Set(float64(report.Finished.Unix()))
	}
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

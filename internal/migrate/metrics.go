// ABOUTME: Prometheus collector for migration runs
// ABOUTME: Counts runs by outcome kind and tracks duration and in-flight runs

package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "engagemate_migrate"

// Collector is a prometheus.Collector for migration metrics.
type Collector struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	inflight prometheus.Gauge
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "The number of migration invocations by outcome kind.",
			}, []string{"kind"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "duration_seconds",
				Help:      "The time the migration tool ran for.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "inflight",
				Help:      "The number of migration tool processes currently running.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.runs.Describe(ch)
	c.duration.Describe(ch)
	c.inflight.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.runs.Collect(ch)
	c.duration.Collect(ch)
	c.inflight.Collect(ch)
}

func (c *Collector) observe(o Outcome) {
	c.runs.WithLabelValues(o.Kind.String()).Inc()
	if o.Kind != KindAlreadyRunning && o.Kind != KindSpawnFailed {
		c.duration.Observe(o.Duration.Seconds())
	}
}

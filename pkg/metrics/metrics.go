// Package metrics exposes the strand core's operation counters as
// Prometheus metrics via a pull-style Collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/strand-dev/strand/pkg/strand"
)

// Config configures the Prometheus collector.
type Config struct {
	// Namespace is the metrics namespace (default: "strand").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// Option configures the Prometheus collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// defaultConfig returns the default collector configuration.
func defaultConfig() Config {
	return Config{
		Namespace: "strand",
	}
}

// Collector reads strand.ReadStats on every scrape and reports the
// counters as Prometheus metrics. It holds no state of its own, so a
// single collector can be registered in any number of registries.
type Collector struct {
	cellsCreated      *prometheus.Desc
	reads             *prometheus.Desc
	cacheHits         *prometheus.Desc
	recomputes        *prometheus.Desc
	recomputeFailures *prometheus.Desc
	cycleErrors       *prometheus.Desc
	dirtyMarks        *prometheus.Desc
	rebinds           *prometheus.Desc
}

// NewCollector creates a collector with the given options.
func NewCollector(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help, nil, config.ConstLabels,
		)
	}

	return &Collector{
		cellsCreated:      desc("cells_created_total", "Total number of cells constructed."),
		reads:             desc("reads_total", "Total number of cell reads."),
		cacheHits:         desc("cache_hits_total", "Reads served from a clean cache."),
		recomputes:        desc("recomputes_total", "Binding evaluations, successful or not."),
		recomputeFailures: desc("recompute_failures_total", "Binding evaluations that returned an error."),
		cycleErrors:       desc("cycle_errors_total", "Reads that detected a dependency cycle."),
		dirtyMarks:        desc("dirty_marks_total", "Clean-to-dirty cell transitions."),
		rebinds:           desc("rebinds_total", "SetValue/BindExpr calls on existing cells."),
	}
}

// Register creates a collector and registers it with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func Register(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollector(opts...)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cellsCreated
	ch <- c.reads
	ch <- c.cacheHits
	ch <- c.recomputes
	ch <- c.recomputeFailures
	ch <- c.cycleErrors
	ch <- c.dirtyMarks
	ch <- c.rebinds
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := strand.ReadStats()

	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	counter(c.cellsCreated, stats.CellsCreated)
	counter(c.reads, stats.Reads)
	counter(c.cacheHits, stats.CacheHits)
	counter(c.recomputes, stats.Recomputes)
	counter(c.recomputeFailures, stats.RecomputeFailures)
	counter(c.cycleErrors, stats.CycleErrors)
	counter(c.dirtyMarks, stats.DirtyMarks)
	counter(c.rebinds, stats.Rebinds)
}

var _ prometheus.Collector = (*Collector)(nil)

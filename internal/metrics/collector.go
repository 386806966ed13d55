// Package metrics exposes a document's internal counters as a Prometheus
// collector, following the same const-metric-on-demand shape
// _examples/drpcorg-chotki/pebble_collector.go uses for its own storage
// engine's stats, ported here from pebble's compaction/memtable/WAL
// counters to this module's own atom/tombstone/annotation counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Source is whatever a Collector reports on; a Document implements it.
type Source interface {
	AtomCount() int
	TombstoneCount() int
	AnnotationCount() int
	OpLogBytes() int
}

// Collector is a prometheus.Collector reporting a single document's
// size. Register it once per Document with a prometheus.Registry.
type Collector struct {
	src Source

	atomCount       *prometheus.Desc
	tombstoneCount  *prometheus.Desc
	annotationCount *prometheus.Desc
	opLogBytes      *prometheus.Desc
}

// New returns a Collector reporting src's counters.
func New(src Source) *Collector {
	return &Collector{
		src: src,
		atomCount: prometheus.NewDesc(
			"textcrdt_atom_count",
			"Number of atoms ever integrated into the sequence, live or tombstoned",
			nil, nil,
		),
		tombstoneCount: prometheus.NewDesc(
			"textcrdt_tombstone_count",
			"Number of tombstoned atoms currently retained",
			nil, nil,
		),
		annotationCount: prometheus.NewDesc(
			"textcrdt_annotation_record_count",
			"Number of annotate/eraseAnn records currently held",
			nil, nil,
		),
		opLogBytes: prometheus.NewDesc(
			"textcrdt_op_log_bytes",
			"Approximate encoded size of the full operation log",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.atomCount
	ch <- c.tombstoneCount
	ch <- c.annotationCount
	ch <- c.opLogBytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.atomCount, prometheus.GaugeValue, float64(c.src.AtomCount()))
	ch <- prometheus.MustNewConstMetric(c.tombstoneCount, prometheus.GaugeValue, float64(c.src.TombstoneCount()))
	ch <- prometheus.MustNewConstMetric(c.annotationCount, prometheus.GaugeValue, float64(c.src.AnnotationCount()))
	ch <- prometheus.MustNewConstMetric(c.opLogBytes, prometheus.GaugeValue, float64(c.src.OpLogBytes()))
}

package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// FieldSource lists the fields of a node.
type FieldSource interface {
	Fields() []replication.FieldInfo
}

// Collector reports point-in-time field statistics on every scrape.
type Collector struct {
	source FieldSource

	fields      *prometheus.Desc
	orphaned    *prometheus.Desc
	subscribers *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source FieldSource) *Collector {
	return &Collector{
		source: source,
		fields: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "field", "count"),
			"Declared fields by value kind",
			[]string{"kind"}, nil),
		orphaned: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "field", "without_authority"),
			"Fields nobody holds authority for; commands to them fail",
			nil, nil),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "field", "subscribers"),
			"Subscriptions across all fields",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fields
	ch <- c.orphaned
	ch <- c.subscribers
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	byKind := make(map[string]int)
	orphaned, subscribers := 0, 0
	for _, f := range c.source.Fields() {
		byKind[string(f.Kind)]++
		if f.Authority == "" {
			orphaned++
		}
		subscribers += f.Subscribers
	}

	for kind, n := range byKind {
		ch <- prometheus.MustNewConstMetric(c.fields, prometheus.GaugeValue, float64(n), kind)
	}
	ch <- prometheus.MustNewConstMetric(c.orphaned, prometheus.GaugeValue, float64(orphaned))
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(subscribers))
}

// Package metric provides Prometheus metrics for syncmesh.
//
//   - prometheus.go: the metric registry, which doubles as the replication
//     event recorder, and the /metrics handler
//   - collector.go: scrape-time field statistics read from a node
//
// Metrics are exposed at /metrics in Prometheus format.
package metric

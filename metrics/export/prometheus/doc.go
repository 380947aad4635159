// Package prometheus exposes engine counters through a client_golang
// Collector.
//
// [NewPrometheusExporter] wraps a [sessiongate.Engine]. The exporter can be
// registered with any Registerer or served directly through [PrometheusExporter.Handler].
// Counter names are prefixed sessiongate_*_total. The single histogram is
// sessiongate_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry on its own.
//   - Mutate engine state.
package prometheus

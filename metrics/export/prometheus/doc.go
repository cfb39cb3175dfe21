// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// Counter names are goidentity_*_total; the single histogram is
// goidentity_grant_latency_seconds. Mount [PrometheusExporter.Handler] on
// /metrics.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry.
//   - Mutate engine state.
package prometheus

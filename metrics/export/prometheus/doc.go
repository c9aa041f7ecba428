// Package prometheus renders engine counters in Prometheus text exposition
// format. Counter names are prefixed authengine_*_total; the single
// histogram is authengine_validate_latency_seconds.
//
// [NewExporter] wraps an engine; [Exporter.Handler] is mounted by the
// caller, nothing registers in a global registry.
package prometheus

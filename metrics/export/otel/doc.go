// Package otel exports engine counters through an OpenTelemetry meter.
//
// [NewExporter] registers one observable instrument per counter and per
// histogram bucket; a single callback reads a snapshot on every collection
// cycle. The caller owns the MeterProvider.
package otel

// Package internaldefs holds the metric name and bucket definitions shared
// by the exporter packages, so Prometheus and OTel output stay aligned.
package internaldefs

// Package telemetry wires tracing and metrics.
//
// Tracing is opt-in through OTEL_EXPORTER_OTLP_ENDPOINT; without it the
// global tracer provider stays a no-op. Metrics live in a private
// Prometheus registry and are served by "rlchess sync --metrics-addr".
package telemetry

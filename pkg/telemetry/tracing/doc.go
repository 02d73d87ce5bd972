// Package tracing configures OpenTelemetry tracing for retention sweeps.
//
// When enabled, spans are exported over OTLP gRPC. Sweeps produce a "sweep"
// span with "sweep.select" and "sweep.delete" children carrying the
// attributes defined in attributes.go. When disabled, a noop tracer is used.
package tracing

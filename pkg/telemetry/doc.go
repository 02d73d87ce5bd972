// Package telemetry groups the observability packages of the truncator.
//
//   - logging: slog loggers with sweep fields taken from the context
//   - metrics: Prometheus counters and histograms for sweeps
//   - tracing: OpenTelemetry spans around sweep phases
//   - health: liveness and readiness probes served by "truncator run"
package telemetry

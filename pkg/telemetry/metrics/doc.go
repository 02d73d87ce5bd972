// Package metrics exposes sweep metrics in the Prometheus format.
//
// Metrics (with the default "truncator" namespace):
//   - truncator_sweeps_total{type,outcome}: sweeps by outcome
//     ("deleted", "noop", "dry_run", "skipped", "error")
//   - truncator_candidates_total{type,rule}: versions selected per rule
//   - truncator_rows_deleted_total{table}: rows removed per version table
//   - truncator_sweep_duration_seconds{type}: sweep latency
//
// SweepMetrics satisfies retention.Recorder and is handed to the sweeper
// with retention.WithRecorder.
package metrics

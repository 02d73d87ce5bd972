package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names used by the sweeper.
const (
	SpanSweep  = "sweep"
	SpanSelect = "sweep.select"
	SpanDelete = "sweep.delete"
)

// Attribute keys use the "truncator.*" namespace.
const (
	AttrSweepID    = "truncator.sweep_id"
	AttrType       = "truncator.type"
	AttrRecordID   = "truncator.record_id"
	AttrDryRun     = "truncator.dry_run"
	AttrCandidates = "truncator.candidates"
	AttrTables     = "truncator.tables"
	AttrDeleted    = "truncator.deleted"
	AttrState      = "truncator.state"
)

// SweepAttributes returns the attributes identifying a sweep.
func SweepAttributes(sweepID, typeName string, recordID int64, dryRun bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSweepID, sweepID),
		attribute.String(AttrType, typeName),
		attribute.Int64(AttrRecordID, recordID),
		attribute.Bool(AttrDryRun, dryRun),
	}
}

// SetCandidates records the size of the candidate set on span.
func SetCandidates(span trace.Span, n int) {
	span.SetAttributes(attribute.Int(AttrCandidates, n))
}

// SetDeleted records the tables touched and rows deleted on span.
func SetDeleted(span trace.Span, tables []string, deleted int64) {
	span.SetAttributes(
		attribute.StringSlice(AttrTables, tables),
		attribute.Int64(AttrDeleted, deleted),
	)
}

// SetState records the final sweep state on span.
func SetState(span trace.Span, state string) {
	span.SetAttributes(attribute.String(AttrState, state))
}

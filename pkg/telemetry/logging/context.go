package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// SweepIDKey is the context key for sweep correlation IDs.
	SweepIDKey contextKey = "sweep_id"

	// TypeKey is the context key for the record type being swept.
	TypeKey contextKey = "type"

	// RecordIDKey is the context key for the record being swept.
	RecordIDKey contextKey = "record_id"
)

// WithSweepID adds a sweep ID to the context.
func WithSweepID(ctx context.Context, sweepID string) context.Context {
	return context.WithValue(ctx, SweepIDKey, sweepID)
}

// GetSweepID retrieves the sweep ID from the context.
func GetSweepID(ctx context.Context) string {
	if sweepID, ok := ctx.Value(SweepIDKey).(string); ok {
		return sweepID
	}
	return ""
}

// WithSweep adds the sweep ID and the record being swept to the context.
func WithSweep(ctx context.Context, sweepID, typeName string, recordID int64) context.Context {
	ctx = WithSweepID(ctx, sweepID)
	ctx = context.WithValue(ctx, TypeKey, typeName)
	return context.WithValue(ctx, RecordIDKey, recordID)
}

// extractContextFields extracts sweep fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr

	if sweepID := GetSweepID(ctx); sweepID != "" {
		fields = append(fields, slog.String(string(SweepIDKey), sweepID))
	}
	if typeName, ok := ctx.Value(TypeKey).(string); ok && typeName != "" {
		fields = append(fields, slog.String(string(TypeKey), typeName))
	}
	if recordID, ok := ctx.Value(RecordIDKey).(int64); ok {
		fields = append(fields, slog.Int64(string(RecordIDKey), recordID))
	}

	return fields
}

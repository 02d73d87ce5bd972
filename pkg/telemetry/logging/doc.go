// Package logging builds the structured logger used across the truncator.
//
// Loggers are plain *slog.Logger values. The handler returned by New reads
// sweep-scoped fields (sweep_id, type, record_id) from the context, so any
// call to the *Context logging methods inside a sweep is correlated without
// threading attributes by hand:
//
//	ctx = logging.WithSweep(ctx, sweepID, "Page", 42)
//	logger.InfoContext(ctx, "sweep completed", "deleted", n)
package logging

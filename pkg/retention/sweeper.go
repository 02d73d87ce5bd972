package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/schema"
	"mercator-hq/truncator/pkg/telemetry/logging"
	"mercator-hq/truncator/pkg/telemetry/tracing"
)

// State is the phase a sweep is in. A sweep moves through RESOLVING,
// SELECTING, and DELETING to DONE; a failed sweep keeps the state it failed in.
type State string

const (
	StateResolving State = "RESOLVING"
	StateSelecting State = "SELECTING"
	StateDeleting  State = "DELETING"
	StateDone      State = "DONE"
)

// Sweep outcomes reported to the Recorder.
const (
	OutcomeDeleted = "deleted"
	OutcomeNoop    = "noop"
	OutcomeDryRun  = "dry_run"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Storage is the history capability set a sweeper needs.
type Storage interface {
	history.Reader
	history.Deleter
	history.Lister
}

// Resolver maps a record type to its version tables.
type Resolver interface {
	Resolve(typeName string) (*schema.Resolution, error)
}

// Recorder receives sweep metrics. metrics.SweepMetrics implements it.
type Recorder interface {
	ObserveSweep(typeName, outcome string, duration time.Duration)
	AddCandidates(typeName, rule string, n int)
	AddDeleted(table string, n int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSweep(string, string, time.Duration) {}
func (nopRecorder) AddCandidates(string, string, int) {}
func (nopRecorder) AddDeleted(string, int64) {}

// Request describes one sweep.
type Request struct {
	// TypeName is the record's type.
	TypeName string

	// RecordID is the record to sweep.
	RecordID int64

	// Identity is the record's current address. Optional; read from the
	// newest version when needed and not given.
	Identity *history.IdentityKey

	// Policy is the retention configuration to apply.
	Policy Policy

	// DryRun selects candidates without deleting anything.
	DryRun bool
}

// Result reports the outcome of one sweep.
type Result struct {
	SweepID    string           `json:"sweep_id"`
	Record     history.Record   `json:"record"`
	State      State            `json:"state"`
	Outcome    string           `json:"outcome"`
	Skipped    string           `json:"skipped,omitempty"`
	DryRun     bool             `json:"dry_run"`
	Candidates *Candidates      `json:"candidates,omitempty"`
	Tables     []string         `json:"tables,omitempty"`
	Deleted    int64            `json:"deleted"`
	PerTable   map[string]int64 `json:"per_table,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *Sweeper) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithTracer sets the tracer used for sweep spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Sweeper) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithIDGenerator overrides how sweep IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Sweeper runs retention sweeps: resolve, select, delete.
// It is safe for concurrent use; sweeps of the same record are serialized.
type Sweeper struct {
	store    Storage
	resolver Resolver
	selector *Selector
	executor *Executor
	locks    *recordLocks

	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	newID    func() string
}

// NewSweeper creates a sweeper over store using resolver for table lookup.
func NewSweeper(store Storage, resolver Resolver, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		resolver: resolver,
		locks:    newRecordLocks(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.selector = NewSelector(store, s.logger)
	s.executor = NewExecutor(store, s.logger)
	s.logger = s.logger.With("component", "retention.sweeper")

	return s
}

// Sweep runs one sweep for a record.
//
// Disabled rules, an empty candidate set, and a record without history all
// complete with zero deletions and no error. On a delete failure the
// returned Result still reports the rows removed before the failure.
func (s *Sweeper) Sweep(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	record := history.Record{TypeName: req.TypeName, ID: req.RecordID}
	result := &Result{
		SweepID: s.newID(),
		Record:  record,
		State:   StateResolving,
		DryRun:  req.DryRun,
	}

	ctx = logging.WithSweep(ctx, result.SweepID, req.TypeName, req.RecordID)
	ctx, span := s.tracer.Start(ctx, tracing.SpanSweep,
		trace.WithAttributes(tracing.SweepAttributes(result.SweepID, req.TypeName, req.RecordID, req.DryRun)...))
	defer span.End()

	unlock := s.locks.lock(record)
	defer unlock()

	err := s.sweep(ctx, req, result)

	result.Duration = time.Since(start)
	if err != nil {
		result.Outcome = OutcomeError
		err = &SweepError{Record: record, State: result.State, Cause: err}
		s.logger.ErrorContext(ctx, "sweep failed",
			"state", result.State,
			"deleted", result.Deleted,
			"error", err,
		)
	} else {
		result.State = StateDone
	}

	tracing.SetState(span, string(result.State))
	tracing.SetStatus(span, err)
	s.recorder.ObserveSweep(req.TypeName, result.Outcome, result.Duration)

	return result, err
}

func (s *Sweeper) sweep(ctx context.Context, req Request, result *Result) error {
	res, err := s.resolver.Resolve(req.TypeName)
	if err != nil {
		return err
	}
	if !res.HasStages {
		result.Outcome = OutcomeSkipped
		result.Skipped = "type has no draft/live stages"
		s.logger.DebugContext(ctx, "skipping type without stages")
		return nil
	}
	result.Tables = res.Tables

	// SELECTING
	result.State = StateSelecting
	selectCtx, selectSpan := s.tracer.Start(ctx, tracing.SpanSelect)
	candidates, err := s.selector.Select(selectCtx, Target{
		RecordID:      req.RecordID,
		BaseTable:     res.BaseTable,
		PathAddressed: res.PathAddressed,
		Identity:      req.Identity,
	}, req.Policy)
	if err == nil {
		tracing.SetCandidates(selectSpan, candidates.Len())
	}
	tracing.SetStatus(selectSpan, err)
	selectSpan.End()
	if err != nil {
		return err
	}

	result.Candidates = candidates
	for rule, versions := range candidates.ByRule {
		s.recorder.AddCandidates(req.TypeName, string(rule), len(versions))
	}

	if candidates.Empty() {
		result.Outcome = OutcomeNoop
		s.logger.DebugContext(ctx, "nothing to delete")
		return nil
	}
	if req.DryRun {
		result.Outcome = OutcomeDryRun
		s.logger.InfoContext(ctx, "dry run selected versions",
			"candidates", candidates.Len(),
			"tables", len(res.Tables),
		)
		return nil
	}

	// DELETING
	result.State = StateDeleting
	deleteCtx, deleteSpan := s.tracer.Start(ctx, tracing.SpanDelete)
	deletion, err := s.executor.Execute(deleteCtx, res.BaseTable, res.Tables, req.RecordID, candidates.Versions)
	result.Deleted = deletion.Total
	result.PerTable = deletion.PerTable
	for table, n := range deletion.PerTable {
		s.recorder.AddDeleted(table, n)
	}
	tracing.SetDeleted(deleteSpan, res.Tables, deletion.Total)
	tracing.SetStatus(deleteSpan, err)
	deleteSpan.End()

	if err != nil {
		var delErr *DeleteError
		if errors.As(err, &delErr) && delErr.Deleted > 0 {
			s.logger.WarnContext(ctx, "partial deletion, remaining tables skipped",
				"failed_table", delErr.Table,
				"deleted", delErr.Deleted,
			)
		}
		return err
	}

	result.Outcome = OutcomeDeleted
	s.logger.InfoContext(ctx, "sweep completed",
		"candidates", candidates.Len(),
		"deleted", deletion.Total,
		"tables", len(res.Tables),
	)
	return nil
}

// AfterPublish sweeps a record that was just published. It does nothing
// and returns a nil Result unless the policy enables published retention.
func (s *Sweeper) AfterPublish(ctx context.Context, typeName string, recordID int64, identity *history.IdentityKey, policy Policy) (*Result, error) {
	if !policy.PublishedEnabled() {
		return nil, nil
	}
	return s.Sweep(ctx, Request{
		TypeName: typeName,
		RecordID: recordID,
		Identity: identity,
		Policy:   policy,
	})
}

// BatchResult summarizes a sweep of every record of one type.
type BatchResult struct {
	Type    string    `json:"type"`
	Records int       `json:"records"`
	Deleted int64     `json:"deleted"`
	Failed  int       `json:"failed"`
	Results []*Result `json:"results"`
}

// SweepType sweeps every record whose ClassName is typeName, one at a time.
// A failing record does not stop the batch; all failures are joined into
// the returned error.
func (s *Sweeper) SweepType(ctx context.Context, typeName string, policy Policy, dryRun bool) (*BatchResult, error) {
	batch := &BatchResult{Type: typeName}

	res, err := s.resolver.Resolve(typeName)
	if err != nil {
		return batch, err
	}

	ids, err := s.store.RecordIDs(ctx, res.BaseTable, typeName)
	if err != nil {
		return batch, fmt.Errorf("list records of %s: %w", typeName, err)
	}
	batch.Records = len(ids)

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.Sweep(ctx, Request{
			TypeName: typeName,
			RecordID: id,
			Policy:   policy,
			DryRun:   dryRun,
		})
		batch.Results = append(batch.Results, result)
		batch.Deleted += result.Deleted
		if err != nil {
			batch.Failed++
			errs = append(errs, err)
		}
	}

	s.logger.InfoContext(ctx, "type sweep completed",
		"type", typeName,
		"records", batch.Records,
		"deleted", batch.Deleted,
		"failed", batch.Failed,
	)

	return batch, errors.Join(errs...)
}

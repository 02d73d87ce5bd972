package retention

import (
	"fmt"

	"mercator-hq/truncator/pkg/history"
)

// SelectError reports a failure while selecting candidates for one rule.
// Nothing is deleted when selection fails.
type SelectError struct {
	Rule  Rule
	Cause error
}

// Error implements the error interface.
func (e *SelectError) Error() string {
	return fmt.Sprintf("select %s candidates: %v", e.Rule, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SelectError) Unwrap() error {
	return e.Cause
}

// DeleteError reports a failed delete on one table. Deleted counts the rows
// already removed from earlier tables in the same sweep.
type DeleteError struct {
	Table   string
	Deleted int64
	Cause   error
}

// Error implements the error interface.
func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete from %s (after %d rows deleted): %v", e.Table, e.Deleted, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DeleteError) Unwrap() error {
	return e.Cause
}

// SweepError reports the failure of a sweep for one record and the state
// the sweep was in when it failed.
type SweepError struct {
	Record history.Record
	State  State
	Cause  error
}

// Error implements the error interface.
func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep %s failed while %s: %v", e.Record, e.State, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SweepError) Unwrap() error {
	return e.Cause
}

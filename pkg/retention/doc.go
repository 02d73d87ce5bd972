// Package retention prunes the version history of versioned records.
//
// Every edit of a record appends an immutable version row. A sweep decides
// which of those rows are no longer worth keeping and deletes them from
// every version table backing the record's type. A sweep runs in three
// steps:
//
//  1. Resolve the record type to its version tables (schema.Registry).
//  2. Select candidate versions (Selector), applying up to three rules whose
//     results are unioned: published retention, move/rename collapsing, and
//     draft retention.
//  3. Delete the candidates from every resolved table (Executor).
//
// The same candidate set is applied to every table. Deletes are filtered by
// exact version number, so a sweep that fails part way can simply be run
// again: the versions that survived are selected again and the remaining
// tables are pruned.
//
// # Rules
//
// Published retention keeps the newest keep_versions published versions.
// For path-addressed types with keep_redirects, only versions at the
// record's current (ParentID, URLSegment) count toward that window.
//
// Move/rename collapsing (path-addressed types with keep_redirects) keeps
// exactly one published version per prior address so old URLs can still be
// redirected. Versions among the newest keep_versions published versions
// overall are never collapsed.
//
// Draft retention keeps the newest keep_drafts unpublished versions.
// keep_drafts: 0 deletes every draft.
//
// Rows are ordered by LastEdited descending with the higher version number
// first on a tie. Published and draft rules each select at most
// delete_limit versions per sweep.
//
// # Concurrency
//
// Sweeper serializes sweeps of the same record. Sweeps of different records
// are independent and may run concurrently.
package retention

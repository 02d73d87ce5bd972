package retention

import (
	"context"
	"log/slog"

	"mercator-hq/truncator/pkg/history"
)

// Deletion reports the rows removed by one execution.
type Deletion struct {
	// Total is the number of rows removed across every table.
	Total int64 `json:"total"`

	// PerTable holds the rows removed from each table that was reached.
	PerTable map[string]int64 `json:"per_table"`
}

// Executor deletes candidate versions from a record's version tables.
type Executor struct {
	deleter history.Deleter
	logger  *slog.Logger
}

// NewExecutor creates an executor deleting through deleter.
func NewExecutor(deleter history.Deleter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		deleter: deleter,
		logger:  logger.With("component", "retention.executor"),
	}
}

// Execute deletes the rows of recordID whose version is in versions from
// every table, with the same version set for every table. The extension
// tables go first in the given order and baseTable goes last, so the base
// rows that selection reads survive any earlier failure and a later sweep
// selects the same versions again.
//
// An empty version set issues no statements. If a table fails, the remaining
// tables are skipped and a *DeleteError is returned alongside a Deletion
// describing what was already removed.
func (e *Executor) Execute(ctx context.Context, baseTable string, tables []string, recordID int64, versions []int64) (*Deletion, error) {
	d := &Deletion{PerTable: make(map[string]int64, len(tables))}
	if len(versions) == 0 {
		return d, nil
	}

	for _, table := range deleteOrder(baseTable, tables) {
		n, err := e.deleter.DeleteVersions(ctx, table, recordID, versions)
		if err != nil {
			return d, &DeleteError{Table: table, Deleted: d.Total, Cause: err}
		}
		d.PerTable[table] = n
		d.Total += n

		e.logger.DebugContext(ctx, "deleted versions",
			"table", table,
			"deleted", n,
		)
	}

	return d, nil
}

// deleteOrder returns tables without baseTable, followed by baseTable.
func deleteOrder(baseTable string, tables []string) []string {
	order := make([]string, 0, len(tables)+1)
	for _, table := range tables {
		if table != baseTable {
			order = append(order, table)
		}
	}
	return append(order, baseTable)
}

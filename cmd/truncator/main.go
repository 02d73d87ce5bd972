// Truncator prunes the version history of staged, versioned records.
//
// Every save of a versioned record appends a row to its version tables.
// Truncator keeps the newest published and draft versions of each record,
// plus one published version per prior URL of path-addressed records so
// redirects keep working, and deletes the rest from every version table of
// the record's type.
//
// Usage:
//
//	# Sweep one record
//	truncator sweep --type Page --id 42
//
//	# Preview a sweep of every Page without deleting anything
//	truncator sweep-type --type Page --dry-run
//
//	# Run scheduled sweeps with metrics and config hot reload
//	truncator run --config /etc/truncator/config.yaml
//
//	# Show the version tables of a type
//	truncator tables --type BlogPost
//
//	# Validate configuration
//	truncator validate
package main

func main() {
	Execute()
}

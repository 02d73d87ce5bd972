// Package storage provides storage backends for version history.
//
// # Storage Backends
//
//   - SQL: SQLite through database/sql and sqlx, using either the cgo
//     driver (github.com/mattn/go-sqlite3, driver name "sqlite3") or the
//     pure Go driver (modernc.org/sqlite, driver name "sqlite")
//   - Memory: in-memory storage for tests and dry runs
//
// PostgreSQL and MySQL are served by the gormstore package.
//
// # SQL Backend
//
// The SQL backend provides:
//
//   - WAL mode for concurrent reads/writes
//   - Busy timeout for handling locks
//   - Bound parameters for every value, including version sets, which are
//     expanded with sqlx.In
//   - Validated, quoted table identifiers
//
// # Basic Usage
//
//	store, err := storage.NewSQLStorage(&storage.SQLConfig{
//	    Driver:      "sqlite3",
//	    Path:        "data/site.db",
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rows, err := store.QueryVersions(ctx, &history.Query{
//	    Table:     "SiteTree_Versions",
//	    RecordID:  42,
//	    Published: history.Published(true),
//	})
//
// # Schema
//
// Version tables are owned by the versioning engine that writes them.
// EnsureTables creates them when missing, which is what tests and local
// development databases rely on.
package storage

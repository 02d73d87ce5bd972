package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"mercator-hq/truncator/pkg/history"
)

// Supported database/sql driver names.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
)

// deleteChunkSize caps the number of bound version numbers per DELETE.
const deleteChunkSize = 500

// SQLConfig contains configuration for the SQL storage backend.
type SQLConfig struct {
	// Driver is the database/sql driver name: "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLConfig returns the default SQL storage configuration.
func DefaultSQLConfig() *SQLConfig {
	return &SQLConfig{
		Driver:       DriverSQLite3,
		Path:         "data/versions.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLStorage implements history.Store on top of database/sql and sqlx.
type SQLStorage struct {
	db     *sqlx.DB
	config *SQLConfig
	logger *slog.Logger
}

var _ history.Store = (*SQLStorage)(nil)

// versionRow is the scan target for base version table rows.
type versionRow struct {
	ID           int64          `db:"ID"`
	RecordID     int64          `db:"RecordID"`
	Version      int64          `db:"Version"`
	ClassName    sql.NullString `db:"ClassName"`
	LastEdited   sqlTime        `db:"LastEdited"`
	WasPublished bool           `db:"WasPublished"`
	URLSegment   sql.NullString `db:"URLSegment"`
	ParentID     sql.NullInt64  `db:"ParentID"`
}

// NewSQLStorage opens a SQL storage backend.
// It enables WAL mode and the busy timeout if configured.
func NewSQLStorage(config *SQLConfig) (*SQLStorage, error) {
	if config == nil {
		config = DefaultSQLConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverSQLite3
	}
	if config.Driver != DriverSQLite3 && config.Driver != DriverSQLite {
		return nil, history.NewStorageError(config.Driver, "open", "",
			fmt.Errorf("unsupported driver %q (supported: %s, %s)", config.Driver, DriverSQLite3, DriverSQLite))
	}

	logger := slog.Default().With("component", "history.storage.sql", "driver", config.Driver)

	db, err := sqlx.Open(config.Driver, config.Path)
	if err != nil {
		return nil, history.NewStorageError(config.Driver, "open", "", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQL storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize applies connection pragmas.
func (s *SQLStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return history.NewStorageError(s.config.Driver, "enable_wal", "", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return history.NewStorageError(s.config.Driver, "set_busy_timeout", "", err)
		}
	}

	return nil
}

// EnsureTables creates the base version table and any extension version
// tables if they do not exist.
func (s *SQLStorage) EnsureTables(ctx context.Context, base string, extensions ...string) error {
	if err := s.createTable(ctx, baseTableSchema, base); err != nil {
		return err
	}
	for _, table := range extensions {
		if err := s.createTable(ctx, extensionTableSchema, table); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStorage) createTable(ctx context.Context, ddl, table string) error {
	quoted, err := history.QuoteTable(table)
	if err != nil {
		return history.NewStorageError(s.config.Driver, "create_table", table, err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(ddl, quoted)); err != nil {
		return history.NewStorageError(s.config.Driver, "create_table", table, err)
	}
	index := `"idx_` + table + `_record_version"`
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(versionIndexSchema, index, quoted)); err != nil {
		return history.NewStorageError(s.config.Driver, "create_index", table, err)
	}
	return nil
}

// InsertVersion appends a row to a base version table.
// Version rows are normally written by the versioning engine; this exists
// for fixtures and imports.
func (s *SQLStorage) InsertVersion(ctx context.Context, table string, v *history.Version) error {
	quoted, err := history.QuoteTable(table)
	if err != nil {
		return history.NewStorageError(s.config.Driver, "insert", table, err)
	}

	stmt := `INSERT INTO ` + quoted + ` ("RecordID", "Version", "ClassName", "LastEdited", "WasPublished", "URLSegment", "ParentID")
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, stmt,
		v.RecordID, v.Version, v.ClassName,
		v.LastEdited.UTC().Format(lastEditedLayout),
		v.WasPublished, v.URLSegment, v.ParentID,
	)
	if err != nil {
		return history.NewStorageError(s.config.Driver, "insert", table, err)
	}
	return nil
}

// InsertExtensionVersion appends a row to an extension version table.
func (s *SQLStorage) InsertExtensionVersion(ctx context.Context, table string, recordID, version int64) error {
	quoted, err := history.QuoteTable(table)
	if err != nil {
		return history.NewStorageError(s.config.Driver, "insert", table, err)
	}

	stmt := `INSERT INTO ` + quoted + ` ("RecordID", "Version") VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, recordID, version); err != nil {
		return history.NewStorageError(s.config.Driver, "insert", table, err)
	}
	return nil
}

// orderNewestFirst sorts on the instant LastEdited denotes rather than its
// text, so rows written by other writers in any SQLite date format or with a
// UTC offset order correctly. julianday resolves to the millisecond; closer
// edits fall through to the Version tie-break.
const orderNewestFirst = ` ORDER BY julianday("LastEdited") DESC, "Version" DESC`

// QueryVersions returns rows matching the query, newest first.
func (s *SQLStorage) QueryVersions(ctx context.Context, query *history.Query) ([]*history.Version, error) {
	quoted, err := history.QuoteTable(query.Table)
	if err != nil {
		return nil, history.NewStorageError(s.config.Driver, "query", query.Table, err)
	}

	whereClause, args := buildWhereClause(query)

	var b strings.Builder
	b.WriteString(`SELECT "ID", "RecordID", "Version", "ClassName", "LastEdited", "WasPublished", "URLSegment", "ParentID" FROM `)
	b.WriteString(quoted)
	b.WriteString(" WHERE ")
	b.WriteString(whereClause)
	b.WriteString(orderNewestFirst)

	switch {
	case query.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, query.Limit)
	case query.Offset > 0:
		// SQLite requires a LIMIT clause before OFFSET.
		b.WriteString(" LIMIT -1")
	}
	if query.Offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, query.Offset)
	}

	stmt, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, history.NewStorageError(s.config.Driver, "query", query.Table, err)
	}

	var rows []versionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(stmt), args...); err != nil {
		return nil, history.NewStorageError(s.config.Driver, "query", query.Table, err)
	}

	versions := make([]*history.Version, 0, len(rows))
	for i := range rows {
		versions = append(versions, rows[i].toVersion())
	}
	return versions, nil
}

// DeleteVersions removes the given versions of one record from table.
func (s *SQLStorage) DeleteVersions(ctx context.Context, table string, recordID int64, versions []int64) (int64, error) {
	if len(versions) == 0 {
		return 0, nil
	}

	quoted, err := history.QuoteTable(table)
	if err != nil {
		return 0, history.NewStorageError(s.config.Driver, "delete", table, err)
	}

	var deleted int64
	for start := 0; start < len(versions); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(versions))

		stmt, args, err := sqlx.In(`DELETE FROM `+quoted+` WHERE "RecordID" = ? AND "Version" IN (?)`,
			recordID, versions[start:end])
		if err != nil {
			return deleted, history.NewStorageError(s.config.Driver, "delete", table, err)
		}

		result, err := s.db.ExecContext(ctx, s.db.Rebind(stmt), args...)
		if err != nil {
			return deleted, history.NewStorageError(s.config.Driver, "delete", table, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return deleted, history.NewStorageError(s.config.Driver, "rows_affected", table, err)
		}
		deleted += n
	}

	s.logger.Debug("deleted versions",
		"table", table,
		"record_id", recordID,
		"requested", len(versions),
		"deleted", deleted,
	)

	return deleted, nil
}

// RecordIDs returns the distinct record ids in table for a class name.
// An empty className matches every row.
func (s *SQLStorage) RecordIDs(ctx context.Context, table, className string) ([]int64, error) {
	quoted, err := history.QuoteTable(table)
	if err != nil {
		return nil, history.NewStorageError(s.config.Driver, "list_records", table, err)
	}

	stmt := `SELECT DISTINCT "RecordID" FROM ` + quoted
	var args []interface{}
	if className != "" {
		stmt += ` WHERE "ClassName" = ?`
		args = append(args, className)
	}
	stmt += ` ORDER BY "RecordID"`

	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, stmt, args...); err != nil {
		return nil, history.NewStorageError(s.config.Driver, "list_records", table, err)
	}
	return ids, nil
}

// Ping verifies the database is reachable.
func (s *SQLStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return history.NewStorageError(s.config.Driver, "ping", "", err)
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return history.NewStorageError(s.config.Driver, "close", "", err)
	}
	s.logger.Info("SQL storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the clause (without "WHERE") and its arguments. Slice arguments
// are left for sqlx.In to expand.
func buildWhereClause(query *history.Query) (string, []interface{}) {
	conditions := []string{`"RecordID" = ?`}
	args := []interface{}{query.RecordID}

	if query.Published != nil {
		conditions = append(conditions, `"WasPublished" = ?`)
		args = append(args, *query.Published)
	}

	if query.Identity != nil {
		conditions = append(conditions, `"URLSegment" = ?`, `"ParentID" = ?`)
		args = append(args, query.Identity.URLSegment, query.Identity.ParentID)
	}

	if query.NotIdentity != nil {
		conditions = append(conditions, `("URLSegment" != ? OR "ParentID" != ?)`)
		args = append(args, query.NotIdentity.URLSegment, query.NotIdentity.ParentID)
	}

	if len(query.ExcludeVersions) > 0 {
		conditions = append(conditions, `"Version" NOT IN (?)`)
		args = append(args, query.ExcludeVersions)
	}

	return strings.Join(conditions, " AND "), args
}

func (r *versionRow) toVersion() *history.Version {
	return &history.Version{
		ID:           r.ID,
		RecordID:     r.RecordID,
		Version:      r.Version,
		ClassName:    r.ClassName.String,
		LastEdited:   r.LastEdited.Time,
		WasPublished: r.WasPublished,
		URLSegment:   r.URLSegment.String,
		ParentID:     r.ParentID.Int64,
	}
}

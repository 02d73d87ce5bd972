// Package gormstore provides a history.Store backed by GORM, for version
// tables living in PostgreSQL or MySQL.
//
// Conditions are built from GORM clauses rather than raw SQL so that
// identifier quoting follows the dialect in use.
package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mercator-hq/truncator/pkg/history"
)

// deleteChunkSize caps the number of bound version numbers per DELETE.
const deleteChunkSize = 500

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// Config configures a GORM-backed store.
type Config struct {
	// Dialect is "postgres" or "mysql".
	Dialect string

	// DSN is the driver-specific connection string.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection may be reused.
	ConnMaxLifetime time.Duration
}

// Store implements history.Store using GORM.
type Store struct {
	db      *gorm.DB
	backend string
	logger  *slog.Logger
}

var _ history.Store = (*Store)(nil)

// Row is the GORM model for a base version table row. The table name is
// always supplied per query.
type Row struct {
	ID           int64     `gorm:"column:ID;primaryKey;autoIncrement"`
	RecordID     int64     `gorm:"column:RecordID;not null;default:0"`
	Version      int64     `gorm:"column:Version;not null;default:0"`
	ClassName    string    `gorm:"column:ClassName;not null;default:''"`
	LastEdited   time.Time `gorm:"column:LastEdited"`
	WasPublished bool      `gorm:"column:WasPublished;not null;default:false"`
	URLSegment   string    `gorm:"column:URLSegment;not null;default:''"`
	ParentID     int64     `gorm:"column:ParentID;not null;default:0"`
}

// ExtensionRow is the GORM model for an extension version table row.
type ExtensionRow struct {
	ID       int64 `gorm:"column:ID;primaryKey;autoIncrement"`
	RecordID int64 `gorm:"column:RecordID;not null;default:0"`
	Version  int64 `gorm:"column:Version;not null;default:0"`
}

// Open connects to the configured database.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DialectMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, history.NewStorageError(cfg.Dialect, "open", "",
			fmt.Errorf("unsupported dialect %q (supported: %s, %s)", cfg.Dialect, DialectPostgres, DialectMySQL))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, history.NewStorageError(cfg.Dialect, "open", "", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, history.NewStorageError(cfg.Dialect, "open", "", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, cfg.Dialect), nil
}

// New wraps an existing GORM handle. backend labels errors and logs.
func New(db *gorm.DB, backend string) *Store {
	return &Store{
		db:      db,
		backend: backend,
		logger:  slog.Default().With("component", "history.gormstore", "backend", backend),
	}
}

// EnsureTables creates the base and extension version tables if missing.
func (s *Store) EnsureTables(ctx context.Context, base string, extensions ...string) error {
	if err := s.migrate(ctx, base, &Row{}); err != nil {
		return err
	}
	for _, table := range extensions {
		if err := s.migrate(ctx, table, &ExtensionRow{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context, table string, model interface{}) error {
	if !history.ValidTableName(table) {
		return history.NewStorageError(s.backend, "migrate", table, fmt.Errorf("invalid table name %q", table))
	}
	if err := s.db.WithContext(ctx).Table(table).AutoMigrate(model); err != nil {
		return history.NewStorageError(s.backend, "migrate", table, err)
	}
	return nil
}

// InsertVersion appends a row to a base version table.
func (s *Store) InsertVersion(ctx context.Context, table string, v *history.Version) error {
	if !history.ValidTableName(table) {
		return history.NewStorageError(s.backend, "insert", table, fmt.Errorf("invalid table name %q", table))
	}
	row := &Row{
		RecordID:     v.RecordID,
		Version:      v.Version,
		ClassName:    v.ClassName,
		LastEdited:   v.LastEdited.UTC(),
		WasPublished: v.WasPublished,
		URLSegment:   v.URLSegment,
		ParentID:     v.ParentID,
	}
	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return history.NewStorageError(s.backend, "insert", table, err)
	}
	return nil
}

// InsertExtensionVersion appends a row to an extension version table.
func (s *Store) InsertExtensionVersion(ctx context.Context, table string, recordID, version int64) error {
	if !history.ValidTableName(table) {
		return history.NewStorageError(s.backend, "insert", table, fmt.Errorf("invalid table name %q", table))
	}
	row := &ExtensionRow{RecordID: recordID, Version: version}
	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return history.NewStorageError(s.backend, "insert", table, err)
	}
	return nil
}

// QueryVersions returns rows matching the query, newest first.
func (s *Store) QueryVersions(ctx context.Context, query *history.Query) ([]*history.Version, error) {
	if !history.ValidTableName(query.Table) {
		return nil, history.NewStorageError(s.backend, "query", query.Table, fmt.Errorf("invalid table name %q", query.Table))
	}

	tx := s.db.WithContext(ctx).Table(query.Table).
		Where(map[string]interface{}{"RecordID": query.RecordID})

	if query.Published != nil {
		tx = tx.Where(map[string]interface{}{"WasPublished": *query.Published})
	}
	if query.Identity != nil {
		tx = tx.Where(map[string]interface{}{
			"URLSegment": query.Identity.URLSegment,
			"ParentID":   query.Identity.ParentID,
		})
	}
	if query.NotIdentity != nil {
		tx = tx.Where(clause.Or(
			clause.Neq{Column: clause.Column{Name: "URLSegment"}, Value: query.NotIdentity.URLSegment},
			clause.Neq{Column: clause.Column{Name: "ParentID"}, Value: query.NotIdentity.ParentID},
		))
	}
	if len(query.ExcludeVersions) > 0 {
		tx = tx.Not(map[string]interface{}{"Version": query.ExcludeVersions})
	}

	tx = tx.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "LastEdited"}, Desc: true},
		{Column: clause.Column{Name: "Version"}, Desc: true},
	}})
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}
	if query.Offset > 0 {
		tx = tx.Offset(query.Offset)
	}

	var rows []Row
	if err := tx.Find(&rows).Error; err != nil {
		return nil, history.NewStorageError(s.backend, "query", query.Table, err)
	}

	versions := make([]*history.Version, 0, len(rows))
	for i := range rows {
		versions = append(versions, rows[i].toVersion())
	}
	return versions, nil
}

// DeleteVersions removes the given versions of one record from table.
func (s *Store) DeleteVersions(ctx context.Context, table string, recordID int64, versions []int64) (int64, error) {
	if len(versions) == 0 {
		return 0, nil
	}
	if !history.ValidTableName(table) {
		return 0, history.NewStorageError(s.backend, "delete", table, fmt.Errorf("invalid table name %q", table))
	}

	var deleted int64
	for start := 0; start < len(versions); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(versions))

		result := s.db.WithContext(ctx).Table(table).
			Where(map[string]interface{}{
				"RecordID": recordID,
				"Version":  versions[start:end],
			}).
			Delete(&ExtensionRow{})
		if result.Error != nil {
			return deleted, history.NewStorageError(s.backend, "delete", table, result.Error)
		}
		deleted += result.RowsAffected
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
func (s *Store) RecordIDs(ctx context.Context, table, className string) ([]int64, error) {
	if !history.ValidTableName(table) {
		return nil, history.NewStorageError(s.backend, "list_records", table, fmt.Errorf("invalid table name %q", table))
	}

	tx := s.db.WithContext(ctx).Table(table).Distinct()
	if className != "" {
		tx = tx.Where(map[string]interface{}{"ClassName": className})
	}

	ids := []int64{}
	if err := tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "RecordID"}}).Pluck("RecordID", &ids).Error; err != nil {
		return nil, history.NewStorageError(s.backend, "list_records", table, err)
	}
	return ids, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return history.NewStorageError(s.backend, "ping", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return history.NewStorageError(s.backend, "ping", "", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return history.NewStorageError(s.backend, "close", "", err)
	}
	if err := sqlDB.Close(); err != nil {
		return history.NewStorageError(s.backend, "close", "", err)
	}
	return nil
}

func (r *Row) toVersion() *history.Version {
	return &history.Version{
		ID:           r.ID,
		RecordID:     r.RecordID,
		Version:      r.Version,
		ClassName:    r.ClassName,
		LastEdited:   r.LastEdited.UTC(),
		WasPublished: r.WasPublished,
		URLSegment:   r.URLSegment,
		ParentID:     r.ParentID,
	}
}

package history

import (
	"context"
	"fmt"
	"time"
)

// IdentityKey is the pair of path-defining attributes that determine a
// path-addressed record's address. A change to either is a move or rename.
type IdentityKey struct {
	ParentID   int64  `json:"parent_id"`
	URLSegment string `json:"url_segment"`
}

// String renders the key as "ParentID - URLSegment".
func (k IdentityKey) String() string {
	return fmt.Sprintf("%d - %s", k.ParentID, k.URLSegment)
}

// Version is a single immutable snapshot row from a version table.
type Version struct {
	ID           int64     `json:"id"`
	RecordID     int64     `json:"record_id"`
	Version      int64     `json:"version"`
	ClassName    string    `json:"class_name,omitempty"`
	LastEdited   time.Time `json:"last_edited"`
	WasPublished bool      `json:"was_published"`
	URLSegment   string    `json:"url_segment,omitempty"`
	ParentID     int64     `json:"parent_id,omitempty"`
}

// Identity returns the version's identity key.
func (v *Version) Identity() IdentityKey {
	return IdentityKey{ParentID: v.ParentID, URLSegment: v.URLSegment}
}

// Newer reports whether v sorts before other in recency order:
// later LastEdited first, higher Version first on a tie.
func (v *Version) Newer(other *Version) bool {
	if !v.LastEdited.Equal(other.LastEdited) {
		return v.LastEdited.After(other.LastEdited)
	}
	return v.Version > other.Version
}

// Record identifies a logical record by type and id.
type Record struct {
	TypeName string `json:"type"`
	ID       int64  `json:"id"`
}

// String renders the record as "Type#ID".
func (r Record) String() string {
	return fmt.Sprintf("%s#%d", r.TypeName, r.ID)
}

// Query defines filter parameters for reading a version table.
// Results are ordered by LastEdited DESC, Version DESC.
type Query struct {
	// Table is the physical version table to read.
	Table string

	// RecordID restricts rows to one record.
	RecordID int64

	// Published restricts rows by WasPublished when non-nil.
	Published *bool

	// Identity restricts rows to those at this identity key.
	Identity *IdentityKey

	// NotIdentity restricts rows to those whose ParentID or URLSegment
	// differs from this key.
	NotIdentity *IdentityKey

	// ExcludeVersions drops rows with these version numbers.
	ExcludeVersions []int64

	// Limit caps the number of rows returned. 0 means no limit.
	Limit int

	// Offset skips this many rows after ordering.
	Offset int
}

// Published is a convenience for building Query.Published.
func Published(v bool) *bool {
	return &v
}

// Reader reads version history.
// Implementations must be safe for concurrent use.
type Reader interface {
	// QueryVersions returns rows matching the query, newest first.
	// Returns an empty slice if nothing matches.
	QueryVersions(ctx context.Context, query *Query) ([]*Version, error)
}

// Deleter removes version rows.
type Deleter interface {
	// DeleteVersions removes every row in table whose RecordID equals
	// recordID and whose Version is in versions, returning the number of
	// rows removed. An empty versions slice is a no-op returning 0.
	DeleteVersions(ctx context.Context, table string, recordID int64, versions []int64) (int64, error)
}

// Lister enumerates records present in a version table.
type Lister interface {
	// RecordIDs returns the distinct RecordIDs in table that have at least
	// one version with the given ClassName, in ascending order.
	RecordIDs(ctx context.Context, table, className string) ([]int64, error)
}

// Store is the full capability set of a storage backend.
type Store interface {
	Reader
	Deleter
	Lister

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Package history defines the version-history model that the retention
// engine operates on, along with the capability interfaces a storage backend
// must provide.
//
// # Versions
//
// Every edit or publish of a logical record produces an immutable version
// row keyed by (RecordID, Version). Rows carry the edit timestamp, whether
// the version was published, and for path-addressed records the identity
// key (ParentID, URLSegment) that determined the record's address at the
// time.
//
// # Capabilities
//
// Backends implement three narrow interfaces:
//
//   - Reader: filtered, ordered, paginated queries over a version table
//   - Deleter: bounded deletes keyed by record and an explicit version set
//   - Lister: enumeration of record identifiers for batch sweeps
//
// Queries are always ordered newest first: LastEdited descending, with the
// higher version number winning when timestamps collide.
//
// # Backends
//
// See the storage package for the SQL and in-memory backends and the
// gormstore package for the GORM-based backend.
package history

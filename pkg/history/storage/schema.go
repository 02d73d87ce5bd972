package storage

// baseTableSchema creates a base version table. The table name is
// substituted after validation and quoting.
const baseTableSchema = `
CREATE TABLE IF NOT EXISTS %s (
    "ID" INTEGER PRIMARY KEY AUTOINCREMENT,
    "RecordID" INTEGER NOT NULL DEFAULT 0,
    "Version" INTEGER NOT NULL DEFAULT 0,
    "ClassName" TEXT NOT NULL DEFAULT '',
    "LastEdited" DATETIME,
    "WasPublished" BOOLEAN NOT NULL DEFAULT 0,
    "URLSegment" TEXT NOT NULL DEFAULT '',
    "ParentID" INTEGER NOT NULL DEFAULT 0
)`

// extensionTableSchema creates a version table for a subclass or
// extension, which only repeats the version key.
const extensionTableSchema = `
CREATE TABLE IF NOT EXISTS %s (
    "ID" INTEGER PRIMARY KEY AUTOINCREMENT,
    "RecordID" INTEGER NOT NULL DEFAULT 0,
    "Version" INTEGER NOT NULL DEFAULT 0
)`

// versionIndexSchema indexes the (RecordID, Version) key used by every
// selection and delete.
const versionIndexSchema = `
CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ("RecordID", "Version")`

// lastEditedLayout is the layout used to write LastEdited. Reads accept
// any layout in timeLayouts and ordering does not depend on it.
const lastEditedLayout = "2006-01-02 15:04:05.000000"

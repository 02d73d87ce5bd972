package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/history/storage"
)

const testConfig = `
storage:
  driver: sqlite
  path: %q

schema:
  types:
    - name: SiteTree
      table: SiteTree
      path_addressed: true
    - name: Page
      parent: SiteTree
      table: Page
    - name: File
      table: File
      no_stages: true

retention:
  schedule: "0 3 * * *"
  defaults:
    keep_versions: 3
    keep_drafts: 1
  types:
    SiteTree:
      keep_redirects: true

telemetry:
  logging:
    level: error
  metrics:
    enabled: false
`

// setupEnv writes a config pointing at a fresh SQLite database with the
// site tables created, and returns the config and database paths.
func setupEnv(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "versions.db")
	cfgPath := filepath.Join(dir, "truncator.yaml")

	if err := os.WriteFile(cfgPath, []byte(fmt.Sprintf(testConfig, dbPath)), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	store := openTestStore(t, dbPath)
	if err := store.EnsureTables(context.Background(), "SiteTree_Versions", "Page_Versions"); err != nil {
		t.Fatalf("EnsureTables() failed: %v", err)
	}
	return cfgPath, dbPath
}

func openTestStore(t *testing.T, dbPath string) *storage.SQLStorage {
	t.Helper()
	store, err := storage.NewSQLStorage(&storage.SQLConfig{
		Driver:      storage.DriverSQLite,
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLStorage() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedPage inserts versions first..last of a Page at "home" into both tables.
func seedPage(t *testing.T, store *storage.SQLStorage, recordID, first, last int64, published bool) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for n := first; n <= last; n++ {
		v := &history.Version{
			RecordID:     recordID,
			Version:      n,
			ClassName:    "Page",
			LastEdited:   base.Add(time.Duration(n) * time.Minute),
			WasPublished: published,
			URLSegment:   "home",
		}
		if err := store.InsertVersion(ctx, "SiteTree_Versions", v); err != nil {
			t.Fatalf("InsertVersion() failed: %v", err)
		}
		if err := store.InsertExtensionVersion(ctx, "Page_Versions", recordID, n); err != nil {
			t.Fatalf("InsertExtensionVersion() failed: %v", err)
		}
	}
}

// remaining returns the versions of a record left in a table, ascending.
func remaining(t *testing.T, dbPath, table string, recordID int64) []int64 {
	t.Helper()
	db, err := sqlx.Open(storage.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("sqlx.Open() failed: %v", err)
	}
	defer db.Close()

	quoted, err := history.QuoteTable(table)
	if err != nil {
		t.Fatalf("QuoteTable() failed: %v", err)
	}
	out := []int64{}
	query := `SELECT "Version" FROM ` + quoted + ` WHERE "RecordID" = ? ORDER BY "Version"`
	if err := db.Select(&out, query, recordID); err != nil {
		t.Fatalf("select versions failed: %v", err)
	}
	return out
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

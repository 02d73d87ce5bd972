package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/history/storage"
	"mercator-hq/truncator/pkg/schema"
	"mercator-hq/truncator/pkg/telemetry/logging"
)

const (
	baseTable = "SiteTree_Versions"
	pageTable = "Page_Versions"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.TypeDef{
		{Name: "SiteTree", Table: "SiteTree", PathAddressed: true},
		{Name: "Page", Parent: "SiteTree", Table: "Page"},
		{Name: "Snippet", Table: "Snippet"},
		{Name: "File", Table: "File", NoStages: true},
	}, "")
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return reg
}

func minutes(n int64) time.Duration {
	return time.Duration(n) * time.Minute
}

// version builds a row edited n minutes after epoch.
func version(recordID, n int64, published bool, parentID int64, segment string) *history.Version {
	return &history.Version{
		RecordID:     recordID,
		Version:      n,
		ClassName:    "Page",
		LastEdited:   epoch.Add(minutes(n)),
		WasPublished: published,
		ParentID:     parentID,
		URLSegment:   segment,
	}
}

// seedPage stores rows in both the base and the Page version table.
func seedPage(mem *storage.MemoryStorage, rows ...*history.Version) {
	mem.Add(baseTable, rows...)
	for _, r := range rows {
		mem.Add(pageTable, &history.Version{RecordID: r.RecordID, Version: r.Version})
	}
}

// seedLinear stores versions first..last of one record at a single address.
func seedLinear(mem *storage.MemoryStorage, recordID, first, last int64, published bool) {
	for n := first; n <= last; n++ {
		seedPage(mem, version(recordID, n, published, 0, "home"))
	}
}

func versionRange(first, last int64) []int64 {
	var out []int64
	for n := first; n <= last; n++ {
		out = append(out, n)
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// faultyStore wraps a MemoryStorage with injectable failures.
type faultyStore struct {
	*storage.MemoryStorage

	mu          sync.Mutex
	failQuery   error
	failTable   string
	deleteCalls []string
}

func (f *faultyStore) QueryVersions(ctx context.Context, q *history.Query) ([]*history.Version, error) {
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	return f.MemoryStorage.QueryVersions(ctx, q)
}

func (f *faultyStore) DeleteVersions(ctx context.Context, table string, recordID int64, versions []int64) (int64, error) {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, table)
	f.mu.Unlock()
	if table == f.failTable {
		return 0, history.NewStorageError("memory", "delete", table, errors.New("disk full"))
	}
	return f.MemoryStorage.DeleteVersions(ctx, table, recordID, versions)
}

// fakeRecorder captures metrics calls.
type fakeRecorder struct {
	mu         sync.Mutex
	outcomes   []string
	candidates map[string]int
	deleted    map[string]int64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{candidates: map[string]int{}, deleted: map[string]int64{}}
}

func (r *fakeRecorder) ObserveSweep(typeName, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) AddCandidates(typeName, rule string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[rule] += n
}

func (r *fakeRecorder) AddDeleted(table string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[table] += n
}

func newTestSweeper(t *testing.T, store Storage, opts ...Option) *Sweeper {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewSweeper(store, testRegistry(t), opts...)
}

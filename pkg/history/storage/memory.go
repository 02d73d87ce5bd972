package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"mercator-hq/truncator/pkg/history"
)

// MemoryStorage implements history.Store using in-memory tables.
// It is intended for tests and dry runs, not production.
type MemoryStorage struct {
	tables map[string][]*history.Version
	mu     sync.RWMutex
}

var _ history.Store = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tables: make(map[string][]*history.Version),
	}
}

// Add appends copies of the given rows to table.
func (s *MemoryStorage) Add(table string, versions ...*history.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range versions {
		versionCopy := *v
		s.tables[table] = append(s.tables[table], &versionCopy)
	}
}

// QueryVersions returns rows matching the query, newest first.
func (s *MemoryStorage) QueryVersions(ctx context.Context, query *history.Query) ([]*history.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*history.Version{}
	for _, v := range s.tables[query.Table] {
		if matchesQuery(v, query) {
			versionCopy := *v
			results = append(results, &versionCopy)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Newer(results[j])
	})

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			return []*history.Version{}, nil
		}
		results = results[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// DeleteVersions removes the given versions of one record from table.
func (s *MemoryStorage) DeleteVersions(ctx context.Context, table string, recordID int64, versions []int64) (int64, error) {
	if len(versions) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.tables[table][:0]
	for _, v := range s.tables[table] {
		if v.RecordID == recordID && slices.Contains(versions, v.Version) {
			deleted++
			continue
		}
		kept = append(kept, v)
	}
	s.tables[table] = kept

	return deleted, nil
}

// RecordIDs returns the distinct record ids in table for a class name.
func (s *MemoryStorage) RecordIDs(ctx context.Context, table, className string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	ids := []int64{}
	for _, v := range s.tables[table] {
		if className != "" && v.ClassName != className {
			continue
		}
		if _, ok := seen[v.RecordID]; ok {
			continue
		}
		seen[v.RecordID] = struct{}{}
		ids = append(ids, v.RecordID)
	}
	slices.Sort(ids)
	return ids, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make(map[string][]*history.Version)
	return nil
}

// Versions returns the version numbers of one record in table, ascending
// (for testing).
func (s *MemoryStorage) Versions(table string, recordID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []int64{}
	for _, v := range s.tables[table] {
		if v.RecordID == recordID {
			out = append(out, v.Version)
		}
	}
	slices.Sort(out)
	return out
}

// Size returns the number of rows in table (for testing).
func (s *MemoryStorage) Size(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tables[table])
}

// matchesQuery checks if a row matches the query filters.
func matchesQuery(v *history.Version, query *history.Query) bool {
	if v.RecordID != query.RecordID {
		return false
	}
	if query.Published != nil && v.WasPublished != *query.Published {
		return false
	}
	if query.Identity != nil && v.Identity() != *query.Identity {
		return false
	}
	if query.NotIdentity != nil && v.Identity() == *query.NotIdentity {
		return false
	}
	if slices.Contains(query.ExcludeVersions, v.Version) {
		return false
	}
	return true
}

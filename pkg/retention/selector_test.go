package retention

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/history/storage"
	"mercator-hq/truncator/pkg/telemetry/logging"
)

func selectFor(t *testing.T, reader history.Reader, target Target, policy Policy) *Candidates {
	t.Helper()
	c, err := NewSelector(reader, logging.Discard()).Select(context.Background(), target, policy)
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	return c
}

func TestSelector_PublishedWindow(t *testing.T) {
	mem := storage.NewMemoryStorage()
	seedLinear(mem, 1, 1, 10, true)

	c := selectFor(t, mem, Target{RecordID: 1, BaseTable: baseTable}, Policy{KeepVersions: Keep(3)})

	if want := versionRange(1, 7); !equalInts(c.Versions, want) {
		t.Errorf("Versions = %v, want %v", c.Versions, want)
	}
	if len(c.ByRule[RulePublished]) != 7 {
		t.Errorf("ByRule[published] = %v, want 7 versions", c.ByRule[RulePublished])
	}
}

func TestSelector_Rules(t *testing.T) {
	tests := []struct {
		name   string
		seed   func(*storage.MemoryStorage)
		target Target
		policy Policy
		want   []int64
	}{
		{
			name: "timestamp tie keeps higher version",
			seed: func(m *storage.MemoryStorage) {
				seedLinear(m, 1, 1, 3, true)
				tied := version(1, 4, true, 0, "home")
				tied.LastEdited = epoch.Add(minutes(3))
				seedPage(m, tied)
			},
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(1)},
			want:   []int64{1, 2, 3},
		},
		{
			name:   "delete limit caps published pass",
			seed:   func(m *storage.MemoryStorage) { seedLinear(m, 1, 1, 10, true) },
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(2), DeleteLimit: 3},
			want:   []int64{6, 7, 8},
		},
		{
			name: "keep drafts zero deletes every draft",
			seed: func(m *storage.MemoryStorage) {
				seedLinear(m, 1, 1, 3, true)
				seedLinear(m, 1, 4, 7, false)
			},
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepDrafts: Keep(0)},
			want:   []int64{4, 5, 6, 7},
		},
		{
			name: "keep drafts window",
			seed: func(m *storage.MemoryStorage) {
				seedLinear(m, 1, 1, 6, false)
			},
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepDrafts: Keep(2)},
			want:   []int64{1, 2, 3, 4},
		},
		{
			name: "published and draft rules union",
			seed: func(m *storage.MemoryStorage) {
				seedLinear(m, 1, 1, 5, true)
				seedLinear(m, 1, 6, 8, false)
			},
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(2), KeepDrafts: Keep(1)},
			want:   []int64{1, 2, 3, 6, 7},
		},
		{
			name:   "keep versions disabled",
			seed:   func(m *storage.MemoryStorage) { seedLinear(m, 1, 1, 5, true) },
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(0), KeepDrafts: Keep(-1)},
			want:   nil,
		},
		{
			name:   "negative keep versions never deletes everything",
			seed:   func(m *storage.MemoryStorage) { seedLinear(m, 1, 1, 5, true) },
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(-1)},
			want:   nil,
		},
		{
			name:   "fewer versions than window",
			seed:   func(m *storage.MemoryStorage) { seedLinear(m, 1, 1, 2, true) },
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(5), KeepDrafts: Keep(0)},
			want:   nil,
		},
		{
			name:   "record without history",
			seed:   func(m *storage.MemoryStorage) { seedLinear(m, 2, 1, 5, true) },
			target: Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true},
			policy: Policy{KeepVersions: Keep(1), KeepDrafts: Keep(0), KeepRedirects: true},
			want:   nil,
		},
		{
			name: "other records untouched",
			seed: func(m *storage.MemoryStorage) {
				seedLinear(m, 1, 1, 4, true)
				seedLinear(m, 2, 5, 9, true)
			},
			target: Target{RecordID: 1, BaseTable: baseTable},
			policy: Policy{KeepVersions: Keep(2)},
			want:   []int64{1, 2},
		},
		{
			name: "keep redirects ignored for types not addressed by path",
			seed: func(m *storage.MemoryStorage) {
				for n := int64(1); n <= 4; n++ {
					seedPage(m, version(1, n, true, 0, "old"))
				}
				seedPage(m, version(1, 5, true, 0, "new"))
			},
			target: Target{RecordID: 1, BaseTable: baseTable, PathAddressed: false},
			policy: Policy{KeepVersions: Keep(2), KeepRedirects: true},
			want:   []int64{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storage.NewMemoryStorage()
			tt.seed(mem)

			c := selectFor(t, mem, tt.target, tt.policy)
			if !equalInts(c.Versions, tt.want) {
				t.Errorf("Versions = %v, want %v", c.Versions, tt.want)
			}
			if c.Empty() != (len(tt.want) == 0) {
				t.Errorf("Empty() = %v", c.Empty())
			}
		})
	}
}

// seedMoves stores a record that lived at three addresses with five
// published versions each: "a" (1-5), "b" (6-10), then "c" (11-15).
func seedMoves(mem *storage.MemoryStorage) {
	segments := []string{"a", "b", "c"}
	n := int64(1)
	for _, segment := range segments {
		for i := 0; i < 5; i++ {
			seedPage(mem, version(1, n, true, 0, segment))
			n++
		}
	}
}

func TestSelector_RedirectAnchors(t *testing.T) {
	mem := storage.NewMemoryStorage()
	seedMoves(mem)

	current := history.IdentityKey{ParentID: 0, URLSegment: "c"}
	c := selectFor(t, mem,
		Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true, Identity: &current},
		Policy{KeepVersions: Keep(2), KeepRedirects: true})

	if want := []int64{11, 12, 13}; !equalInts(sorted(c.ByRule[RulePublished]), want) {
		t.Errorf("published candidates = %v, want %v", c.ByRule[RulePublished], want)
	}
	if want := []int64{1, 2, 3, 4, 6, 7, 8, 9}; !equalInts(sorted(c.ByRule[RuleRedirects]), want) {
		t.Errorf("redirect candidates = %v, want %v", c.ByRule[RuleRedirects], want)
	}

	// One anchor per prior address plus the two newest overall survive.
	var remaining []int64
	for n := int64(1); n <= 15; n++ {
		if !slices.Contains(c.Versions, n) {
			remaining = append(remaining, n)
		}
	}
	if want := []int64{5, 10, 14, 15}; !equalInts(remaining, want) {
		t.Errorf("remaining = %v, want %v", remaining, want)
	}
}

func TestSelector_RedirectAnchorPerHistoricalAddress(t *testing.T) {
	// Three prior addresses with five published versions each, then five
	// more at the current address "d".
	mem := storage.NewMemoryStorage()
	n := int64(1)
	for _, segment := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 5; i++ {
			seedPage(mem, version(1, n, true, 0, segment))
			n++
		}
	}

	current := history.IdentityKey{URLSegment: "d"}
	c := selectFor(t, mem,
		Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true, Identity: &current},
		Policy{KeepVersions: Keep(2), KeepRedirects: true})

	var remaining []int64
	for v := int64(1); v <= 20; v++ {
		if !slices.Contains(c.Versions, v) {
			remaining = append(remaining, v)
		}
	}
	if want := []int64{5, 10, 15, 19, 20}; !equalInts(remaining, want) {
		t.Errorf("remaining = %v, want one anchor per prior address plus the two newest %v", remaining, want)
	}
	if want := []int64{16, 17, 18}; !equalInts(sorted(c.ByRule[RulePublished]), want) {
		t.Errorf("published candidates = %v, want %v", c.ByRule[RulePublished], want)
	}
	if got := len(c.ByRule[RuleRedirects]); got != 12 {
		t.Errorf("redirect candidates = %v, want 12", c.ByRule[RuleRedirects])
	}
}

func TestSelector_RedirectIdentityFromNewestVersion(t *testing.T) {
	mem := storage.NewMemoryStorage()
	seedMoves(mem)

	c := selectFor(t, mem,
		Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true},
		Policy{KeepVersions: Keep(2), KeepRedirects: true})

	if len(c.Versions) != 11 {
		t.Errorf("expected 11 candidates with identity read from newest version, got %v", c.Versions)
	}
}

func TestSelector_RedirectProtectedWindowSpansAddresses(t *testing.T) {
	// "a" 1-3, "b" 4-6, current "c" 7. The three newest published versions
	// (5, 6, 7) are protected even though 5 and 6 are at a prior address,
	// and the newest unprotected version at "b" is still kept as its anchor.
	mem := storage.NewMemoryStorage()
	for n := int64(1); n <= 3; n++ {
		seedPage(mem, version(1, n, true, 0, "a"))
	}
	for n := int64(4); n <= 6; n++ {
		seedPage(mem, version(1, n, true, 0, "b"))
	}
	seedPage(mem, version(1, 7, true, 0, "c"))

	current := history.IdentityKey{URLSegment: "c"}
	c := selectFor(t, mem,
		Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true, Identity: &current},
		Policy{KeepVersions: Keep(3), KeepRedirects: true})

	if want := []int64{1, 2}; !equalInts(c.Versions, want) {
		t.Errorf("Versions = %v, want %v", c.Versions, want)
	}
}

func TestSelector_RedirectDistinguishesParent(t *testing.T) {
	// Same URL segment under two parents counts as two addresses.
	mem := storage.NewMemoryStorage()
	seedPage(mem,
		version(1, 1, true, 10, "about"),
		version(1, 2, true, 10, "about"),
		version(1, 3, true, 20, "about"),
		version(1, 4, true, 20, "about"),
		version(1, 5, true, 30, "about"),
	)

	current := history.IdentityKey{ParentID: 30, URLSegment: "about"}
	c := selectFor(t, mem,
		Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true, Identity: &current},
		Policy{KeepVersions: Keep(1), KeepRedirects: true})

	if want := []int64{1, 3}; !equalInts(c.Versions, want) {
		t.Errorf("Versions = %v, want %v", c.Versions, want)
	}
}

func TestSelector_ReadFailure(t *testing.T) {
	store := &faultyStore{MemoryStorage: storage.NewMemoryStorage(), failQuery: errors.New("connection reset")}

	_, err := NewSelector(store, logging.Discard()).Select(context.Background(),
		Target{RecordID: 1, BaseTable: baseTable},
		Policy{KeepVersions: Keep(1)})

	var selErr *SelectError
	if !errors.As(err, &selErr) {
		t.Fatalf("Select() error = %v, want SelectError", err)
	}
	if selErr.Rule != RulePublished {
		t.Errorf("Rule = %s, want %s", selErr.Rule, RulePublished)
	}
}

// TestSelector_RetentionProperties checks random histories: the newest
// published version is never selected, at least min(keep, total) published
// versions survive, and the draft rule never selects published versions.
func TestSelector_RetentionProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		mem := storage.NewMemoryStorage()
		total := rng.Intn(30) + 1
		segments := []string{"a", "b", "c"}

		var published []*history.Version
		for n := 1; n <= total; n++ {
			v := version(1, int64(n), rng.Intn(3) > 0, int64(rng.Intn(2)), segments[rng.Intn(len(segments))])
			// Occasional timestamp collisions exercise the tie-break.
			if n > 1 && rng.Intn(5) == 0 {
				v.LastEdited = epoch.Add(minutes(int64(n - 1)))
			}
			seedPage(mem, v)
			if v.WasPublished {
				published = append(published, v)
			}
		}

		keep := rng.Intn(5) + 1
		policy := Policy{
			KeepVersions:  Keep(keep),
			KeepDrafts:    Keep(rng.Intn(3)),
			KeepRedirects: rng.Intn(2) == 0,
			DeleteLimit:   rng.Intn(10) + 1,
		}
		c := selectFor(t, mem, Target{RecordID: 1, BaseTable: baseTable, PathAddressed: true}, policy)

		remaining := 0
		var newest *history.Version
		for _, v := range published {
			if !slices.Contains(c.Versions, v.Version) {
				remaining++
			}
			if newest == nil || v.Newer(newest) {
				newest = v
			}
		}

		if floor := min(keep, len(published)); remaining < floor {
			t.Fatalf("iteration %d: %d published versions remain, want at least %d (candidates %v)", iter, remaining, floor, c.Versions)
		}
		if newest != nil && slices.Contains(c.Versions, newest.Version) {
			t.Fatalf("iteration %d: newest published version %d selected", iter, newest.Version)
		}
		for _, v := range c.ByRule[RuleDrafts] {
			for _, p := range published {
				if p.Version == v {
					t.Fatalf("iteration %d: draft rule selected published version %d", iter, v)
				}
			}
		}
	}
}

func sorted(in []int64) []int64 {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

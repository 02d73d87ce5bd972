package retention

import (
	"context"
	"log/slog"
	"slices"

	"mercator-hq/truncator/pkg/history"
)

// Rule names a candidate selection rule.
type Rule string

const (
	// RulePublished selects published versions beyond the keep window.
	RulePublished Rule = "published"

	// RuleRedirects selects surplus versions at prior addresses.
	RuleRedirects Rule = "redirects"

	// RuleDrafts selects draft versions beyond the keep window.
	RuleDrafts Rule = "drafts"

	// ruleIdentity covers looking up the current address.
	ruleIdentity Rule = "identity"
)

// Target identifies the record history a selection runs against.
type Target struct {
	// RecordID is the record whose versions are selected.
	RecordID int64

	// BaseTable is the version table holding the full version columns.
	BaseTable string

	// PathAddressed reports whether the record type is addressed by
	// (ParentID, URLSegment).
	PathAddressed bool

	// Identity is the record's current address. When nil and the redirect
	// rules apply, it is read from the newest version.
	Identity *history.IdentityKey
}

// Candidates is the union of versions selected by every rule.
type Candidates struct {
	// Versions holds the distinct selected version numbers in ascending order.
	Versions []int64 `json:"versions"`

	// ByRule holds the versions each rule selected, newest first.
	ByRule map[Rule][]int64 `json:"by_rule"`
}

// Len returns the number of distinct candidate versions.
func (c *Candidates) Len() int {
	return len(c.Versions)
}

// Empty reports whether there is nothing to delete.
func (c *Candidates) Empty() bool {
	return len(c.Versions) == 0
}

func (c *Candidates) add(rule Rule, versions []int64) {
	if len(versions) == 0 {
		return
	}
	c.ByRule[rule] = append(c.ByRule[rule], versions...)
	c.Versions = append(c.Versions, versions...)
}

func (c *Candidates) finish() {
	slices.Sort(c.Versions)
	c.Versions = slices.Compact(c.Versions)
}

// Selector computes the versions of a record that may be deleted.
type Selector struct {
	reader history.Reader
	logger *slog.Logger
}

// NewSelector creates a selector reading from reader.
func NewSelector(reader history.Reader, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		reader: reader,
		logger: logger.With("component", "retention.selector"),
	}
}

// Select runs every enabled rule against the target's history and returns
// the union of their candidates. A read failure aborts the selection and
// no partial candidate set is returned.
func (s *Selector) Select(ctx context.Context, target Target, policy Policy) (*Candidates, error) {
	c := &Candidates{ByRule: make(map[Rule][]int64)}
	redirects := target.PathAddressed && policy.KeepRedirects

	var current *history.IdentityKey
	if redirects && policy.PublishedEnabled() {
		var err error
		current, err = s.currentIdentity(ctx, target)
		if err != nil {
			return nil, err
		}
		if current == nil {
			s.logger.DebugContext(ctx, "record has no version history")
			c.finish()
			return c, nil
		}
	}

	if policy.PublishedEnabled() {
		versions, err := s.selectPublished(ctx, target, policy, current)
		if err != nil {
			return nil, err
		}
		c.add(RulePublished, versions)

		if current != nil {
			versions, err := s.selectRedirects(ctx, target, policy, *current)
			if err != nil {
				return nil, err
			}
			c.add(RuleRedirects, versions)
		}
	}

	if policy.DraftsEnabled() {
		versions, err := s.selectDrafts(ctx, target, policy)
		if err != nil {
			return nil, err
		}
		c.add(RuleDrafts, versions)
	}

	c.finish()
	return c, nil
}

// currentIdentity returns the target's identity, reading it from the
// newest version when not supplied. Returns nil if there are no versions.
func (s *Selector) currentIdentity(ctx context.Context, target Target) (*history.IdentityKey, error) {
	if target.Identity != nil {
		return target.Identity, nil
	}

	rows, err := s.reader.QueryVersions(ctx, &history.Query{
		Table:    target.BaseTable,
		RecordID: target.RecordID,
		Limit:    1,
	})
	if err != nil {
		return nil, &SelectError{Rule: ruleIdentity, Cause: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	key := rows[0].Identity()
	return &key, nil
}

// selectPublished skips the newest keep_versions published versions and
// selects up to delete_limit of the rest. When current is set only versions
// at that address are considered.
func (s *Selector) selectPublished(ctx context.Context, target Target, policy Policy, current *history.IdentityKey) ([]int64, error) {
	rows, err := s.reader.QueryVersions(ctx, &history.Query{
		Table:     target.BaseTable,
		RecordID:  target.RecordID,
		Published: history.Published(true),
		Identity:  current,
		Offset:    *policy.KeepVersions,
		Limit:     policy.Limit(),
	})
	if err != nil {
		return nil, &SelectError{Rule: RulePublished, Cause: err}
	}

	versions := versionNumbers(rows)
	s.logger.DebugContext(ctx, "published retention pass",
		"keep_versions", *policy.KeepVersions,
		"candidates", len(versions),
	)
	return versions, nil
}

// selectRedirects keeps the newest published version at each prior address
// and selects the older ones. The newest keep_versions published versions
// across all addresses are protected and never selected here.
func (s *Selector) selectRedirects(ctx context.Context, target Target, policy Policy, current history.IdentityKey) ([]int64, error) {
	protected, err := s.reader.QueryVersions(ctx, &history.Query{
		Table:     target.BaseTable,
		RecordID:  target.RecordID,
		Published: history.Published(true),
		Limit:     *policy.KeepVersions,
	})
	if err != nil {
		return nil, &SelectError{Rule: RuleRedirects, Cause: err}
	}

	rows, err := s.reader.QueryVersions(ctx, &history.Query{
		Table:           target.BaseTable,
		RecordID:        target.RecordID,
		Published:       history.Published(true),
		NotIdentity:     &current,
		ExcludeVersions: versionNumbers(protected),
	})
	if err != nil {
		return nil, &SelectError{Rule: RuleRedirects, Cause: err}
	}

	seen := make(map[history.IdentityKey]bool)
	var versions []int64
	for _, row := range rows {
		key := row.Identity()
		if seen[key] {
			versions = append(versions, row.Version)
			continue
		}
		seen[key] = true
	}

	s.logger.DebugContext(ctx, "redirect collapsing pass",
		"current", current.String(),
		"prior_addresses", len(seen),
		"candidates", len(versions),
	)
	return versions, nil
}

// selectDrafts skips the newest keep_drafts unpublished versions and
// selects up to delete_limit of the rest.
func (s *Selector) selectDrafts(ctx context.Context, target Target, policy Policy) ([]int64, error) {
	rows, err := s.reader.QueryVersions(ctx, &history.Query{
		Table:     target.BaseTable,
		RecordID:  target.RecordID,
		Published: history.Published(false),
		Offset:    *policy.KeepDrafts,
		Limit:     policy.Limit(),
	})
	if err != nil {
		return nil, &SelectError{Rule: RuleDrafts, Cause: err}
	}

	versions := versionNumbers(rows)
	s.logger.DebugContext(ctx, "draft retention pass",
		"keep_drafts", *policy.KeepDrafts,
		"candidates", len(versions),
	)
	return versions, nil
}

func versionNumbers(rows []*history.Version) []int64 {
	versions := make([]int64, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, row.Version)
	}
	return versions
}

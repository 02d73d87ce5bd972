package retention

import "mercator-hq/truncator/pkg/config"

// DefaultDeleteLimit caps the versions selected per rule when a policy does
// not set a positive limit.
const DefaultDeleteLimit = 100

// Policy is the effective retention configuration for one sweep.
// It is passed explicitly to every sweep and never cached.
type Policy struct {
	// KeepVersions enables published retention when positive.
	KeepVersions *int

	// KeepDrafts enables draft retention when non-negative. Zero deletes
	// every draft.
	KeepDrafts *int

	// KeepRedirects keeps one version per prior address of a
	// path-addressed record.
	KeepRedirects bool

	// DeleteLimit caps the versions each rule selects in one sweep.
	// Values below one mean DefaultDeleteLimit.
	DeleteLimit int
}

// Keep returns a pointer to n for building policies.
func Keep(n int) *int {
	return &n
}

// PolicyFromConfig converts a merged configuration layer into a Policy.
func PolicyFromConfig(pc config.PolicyConfig) Policy {
	p := Policy{
		KeepVersions: pc.KeepVersions,
		KeepDrafts:   pc.KeepDrafts,
	}
	if pc.KeepRedirects != nil {
		p.KeepRedirects = *pc.KeepRedirects
	}
	if pc.DeleteLimit != nil {
		p.DeleteLimit = *pc.DeleteLimit
	}
	return p
}

// PublishedEnabled reports whether the published retention rule applies.
// Zero, negative, and unset values disable it; they never mean "keep none".
func (p Policy) PublishedEnabled() bool {
	return p.KeepVersions != nil && *p.KeepVersions > 0
}

// DraftsEnabled reports whether the draft retention rule applies.
func (p Policy) DraftsEnabled() bool {
	return p.KeepDrafts != nil && *p.KeepDrafts >= 0
}

// Limit returns the effective per-rule delete limit.
func (p Policy) Limit() int {
	if p.DeleteLimit < 1 {
		return DefaultDeleteLimit
	}
	return p.DeleteLimit
}

// Enabled reports whether any rule applies.
func (p Policy) Enabled() bool {
	return p.PublishedEnabled() || p.DraftsEnabled()
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enforcement

import "github.com/bureau-foundation/keygate/lib/authset"

// AuthorizeRescope decides whether r.OldPolicy may be replaced by
// r.NewPolicy. The ledger is not modified.
//
// Tags are matched by kind and value. A tag present in both sets is
// unchanged. An old tag whose kind is gone from the new set is a
// removal and needs RESCOPING_DEL for its kind. An old tag whose value
// is gone while its kind remains is a modification and needs both
// RESCOPING_ADD and RESCOPING_DEL, for repeatable kinds as well. A new
// tag whose value is absent from the old set needs RESCOPING_ADD even
// when other values of its kind were already present, so a repeatable
// kind cannot gain a value without the grant. RESCOPING_ADD and
// RESCOPING_DEL tags are themselves exempt.
func (e *Enforcer) AuthorizeRescope(r Rescope) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index := r.OldPolicy.Find(authset.TagRescopeAuthTimeout, 0); index >= 0 {
		if code := checkAuthTimeout(r.OldPolicy[index], e.now(), e.ledger); code != OK {
			return deny(code, authset.TagRescopeAuthTimeout)
		}
	}

	grants := rescopeGrants{policy: r.OldPolicy}
	for _, tag := range r.OldPolicy {
		if isRescopingKind(tag.Kind) || r.NewPolicy.ContainsEqual(tag) {
			continue
		}
		if r.NewPolicy.Contains(tag.Kind) {
			if !grants.canModify(tag.Kind) {
				return deny(InvalidRescoping, tag.Kind)
			}
			continue
		}
		if !grants.canRemove(tag.Kind) {
			return deny(InvalidRescoping, tag.Kind)
		}
	}
	for _, tag := range r.NewPolicy {
		if isRescopingKind(tag.Kind) || r.OldPolicy.ContainsEqual(tag) {
			continue
		}
		if !tag.Kind.Repeatable() && r.OldPolicy.Contains(tag.Kind) {
			if !grants.canModify(tag.Kind) {
				return deny(InvalidRescoping, tag.Kind)
			}
			continue
		}
		if !grants.canAdd(tag.Kind) {
			return deny(InvalidRescoping, tag.Kind)
		}
	}
	return nil
}

func isRescopingKind(kind authset.Kind) bool {
	return kind == authset.TagRescopingAdd || kind == authset.TagRescopingDel
}

// rescopeGrants answers capability questions against the old policy's
// RESCOPING_ADD and RESCOPING_DEL lists.
type rescopeGrants struct {
	policy authset.Set
}

func (g rescopeGrants) canAdd(kind authset.Kind) bool {
	return g.policy.ContainsValue(authset.TagRescopingAdd, uint64(kind))
}

func (g rescopeGrants) canRemove(kind authset.Kind) bool {
	return g.policy.ContainsValue(authset.TagRescopingDel, uint64(kind))
}

func (g rescopeGrants) canModify(kind authset.Kind) bool {
	return g.canAdd(kind) && g.canRemove(kind)
}

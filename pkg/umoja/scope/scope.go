package scope

import (
	"errors"

	"github.com/rukundo/umoja/pkg/umoja/models"
)

// ErrAccessDenied is returned whenever a principal's standing forbids the
// requested resolution or action. Callers surface it as 403 with no further
// detail.
var ErrAccessDenied = errors.New("access denied")

// Entity names a filterable resource type.
type Entity string

const (
	EntityRegion        Entity = "region"
	EntityUniversity    Entity = "university"
	EntitySmallGroup    Entity = "smallgroup"
	EntityGraduateGroup Entity = "graduatesmallgroup"
	EntityMember        Entity = "member"
	EntityEvent         Entity = "event"
	EntityProperty      Entity = "property"
	EntityNotification  Entity = "notification"
	EntityReport        Entity = "report"
)

// Scope is the resolved description of which organizational subtree a
// principal may act within. Level decides which of the id fields are
// meaningful; ids the level does not bind are zero. Scopes are values and
// never mutated after resolution.
type Scope struct {
	Level           models.ScopeLevel
	RegionID        uint
	UniversityID    uint
	SmallGroupID    uint
	GraduateGroupID uint
}

// Unbounded reports whether the scope carries no organizational restriction.
// Only superadmin and national scopes are unbounded.
func (s Scope) Unbounded() bool {
	return s.Level == models.ScopeSuperAdmin || s.Level == models.ScopeNational
}

// OrgRefs carries the organizational ids of a candidate row for point checks.
// Zero means the row does not reference that level.
type OrgRefs struct {
	RegionID        uint
	UniversityID    uint
	SmallGroupID    uint
	GraduateGroupID uint
}

// CheckParam verifies a caller-supplied filter id against the scope-bound id
// for the same level. A bound scope must never be widened or silently
// narrowed: a non-zero requested id that differs from a non-zero bound id is
// ErrAccessDenied. Unbounded levels (bound == 0 on an unbounded scope) accept
// any requested id.
func (s Scope) CheckParam(requested, bound uint) error {
	if requested == 0 {
		return nil
	}
	if s.Unbounded() {
		return nil
	}
	if bound != 0 && requested != bound {
		return ErrAccessDenied
	}
	return nil
}

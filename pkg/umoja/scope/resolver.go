package scope

import (
	"github.com/rukundo/umoja/pkg/umoja/models"
	"gorm.io/gorm"
)

// Resolve loads the principal's role assignments and produces its Scope.
//
// A principal with no assignment is authenticated but has no organizational
// standing: ErrAccessDenied, never an empty (and therefore unbounded) scope.
// When several assignments exist the earliest one wins (lowest assignment
// id), so repeated calls with unchanged role data return identical scopes.
// A bounded level missing its required id is a configuration error and also
// resolves to ErrAccessDenied.
func Resolve(db *gorm.DB, userID uint) (Scope, error) {
	var role models.UserRole
	err := db.Where("user_id = ?", userID).Order("id ASC").First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Scope{}, ErrAccessDenied
		}
		return Scope{}, err
	}

	switch role.Level {
	case models.ScopeSuperAdmin, models.ScopeNational:
		return Scope{Level: role.Level}, nil

	case models.ScopeRegion:
		if role.RegionID == nil || *role.RegionID == 0 {
			return Scope{}, ErrAccessDenied
		}
		return Scope{Level: role.Level, RegionID: *role.RegionID}, nil

	case models.ScopeUniversity:
		if role.UniversityID == nil || *role.UniversityID == 0 {
			return Scope{}, ErrAccessDenied
		}
		// The owning region comes from the university row, not from the
		// assignment: a stale region id on the role must not widen the
		// scope across two subtrees.
		s := Scope{Level: role.Level, UniversityID: *role.UniversityID}
		var uni models.University
		if err := db.First(&uni, *role.UniversityID).Error; err == nil {
			s.RegionID = uni.RegionID
		}
		return s, nil

	case models.ScopeSmallGroup:
		if role.SmallGroupID == nil || *role.SmallGroupID == 0 {
			return Scope{}, ErrAccessDenied
		}
		s := Scope{Level: role.Level, SmallGroupID: *role.SmallGroupID}
		var group models.SmallGroup
		if err := db.First(&group, *role.SmallGroupID).Error; err == nil {
			s.UniversityID = group.UniversityID
			s.RegionID = group.RegionID
		}
		return s, nil

	case models.ScopeGraduateGroup:
		if role.GraduateGroupID == nil || *role.GraduateGroupID == 0 {
			return Scope{}, ErrAccessDenied
		}
		s := Scope{Level: role.Level, GraduateGroupID: *role.GraduateGroupID}
		var group models.GraduateSmallGroup
		if err := db.First(&group, *role.GraduateGroupID).Error; err == nil {
			s.RegionID = group.RegionID
		}
		return s, nil
	}

	// Unknown level: deny rather than guess.
	return Scope{}, ErrAccessDenied
}

package scope

import (
	"github.com/rukundo/umoja/pkg/umoja/models"
	"gorm.io/gorm"
)

// Allowed reports whether the scope may touch the entity type at all. A false
// result means the caller must short-circuit with 403 before issuing any
// query; Filter for the same pair returns an always-false predicate, so a
// caller that forgets still matches no rows (deny list, not deny by
// omission).
func (s Scope) Allowed(entity Entity) bool {
	switch s.Level {
	case models.ScopeSuperAdmin, models.ScopeNational, models.ScopeRegion:
		return true
	case models.ScopeUniversity:
		switch entity {
		case EntityRegion, EntityGraduateGroup, EntityProperty:
			return false
		}
		return true
	case models.ScopeSmallGroup:
		switch entity {
		case EntitySmallGroup, EntityMember, EntityEvent, EntityNotification, EntityReport:
			return true
		}
		return false
	case models.ScopeGraduateGroup:
		switch entity {
		case EntityGraduateGroup, EntityMember, EntityNotification:
			return true
		}
		return false
	}
	return false
}

// Filter produces a gorm scope restricting any query on the entity type to
// rows within the caller's subtree. Apply with db.Scopes(s.Filter(entity)).
func (s Scope) Filter(entity Entity) func(*gorm.DB) *gorm.DB {
	if !s.Allowed(entity) {
		return denyAll
	}

	switch s.Level {
	case models.ScopeSuperAdmin, models.ScopeNational:
		return matchAll

	case models.ScopeRegion:
		if entity == EntityRegion {
			return byID(s.RegionID)
		}
		return byColumn("region_id", s.RegionID)

	case models.ScopeUniversity:
		if entity == EntityUniversity {
			return byID(s.UniversityID)
		}
		return byColumn("university_id", s.UniversityID)

	case models.ScopeSmallGroup:
		switch entity {
		case EntitySmallGroup:
			return byID(s.SmallGroupID)
		case EntityEvent:
			// Events are owned by the university; leaders see their
			// university's events but act only on their own group's rows.
			return byColumn("university_id", s.UniversityID)
		default:
			return byColumn("small_group_id", s.SmallGroupID)
		}

	case models.ScopeGraduateGroup:
		if entity == EntityGraduateGroup {
			return byID(s.GraduateGroupID)
		}
		return byColumn("graduate_group_id", s.GraduateGroupID)
	}

	return denyAll
}

// CanAct is the point check gating writes: may this scope act on a row (or a
// proposed row) carrying the given organizational ids? It is independent of
// the read predicate so that creating or moving a child row outside the
// subtree is rejected even when no read ever happens.
func (s Scope) CanAct(entity Entity, refs OrgRefs) bool {
	if !s.Allowed(entity) {
		return false
	}

	switch s.Level {
	case models.ScopeSuperAdmin, models.ScopeNational:
		return true

	case models.ScopeRegion:
		return refs.RegionID == s.RegionID

	case models.ScopeUniversity:
		if refs.UniversityID != s.UniversityID {
			return false
		}
		// Secondary check when both region ids are known.
		if refs.RegionID != 0 && s.RegionID != 0 && refs.RegionID != s.RegionID {
			return false
		}
		return true

	case models.ScopeSmallGroup:
		return refs.SmallGroupID == s.SmallGroupID

	case models.ScopeGraduateGroup:
		return refs.GraduateGroupID == s.GraduateGroupID
	}

	return false
}

func matchAll(db *gorm.DB) *gorm.DB { return db }

func denyAll(db *gorm.DB) *gorm.DB { return db.Where("1 = 0") }

func byID(id uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) }
}

func byColumn(column string, id uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where(column+" = ?", id) }
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// ScopeLevel is the organizational level a role assignment grants.
type ScopeLevel string

const (
	ScopeSuperAdmin    ScopeLevel = "superadmin"
	ScopeNational      ScopeLevel = "national"
	ScopeRegion        ScopeLevel = "region"
	ScopeUniversity    ScopeLevel = "university"
	ScopeSmallGroup    ScopeLevel = "smallgroup"
	ScopeGraduateGroup ScopeLevel = "graduatesmallgroup"
)

// User represents an authenticated principal.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `gorm:"not null" json:"name"`

	// Relationships
	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

// UserRole assigns a principal one scope: a level plus the organizational ids
// that level requires. A principal may hold several assignments; the resolver
// picks the earliest one (lowest id).
type UserRole struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Level           ScopeLevel     `gorm:"type:varchar(20);not null" json:"level"`
	RegionID        *uint          `json:"region_id,omitempty"`
	UniversityID    *uint          `json:"university_id,omitempty"`
	SmallGroupID    *uint          `json:"small_group_id,omitempty"`
	GraduateGroupID *uint          `json:"graduate_group_id,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Member is a person registered under the hierarchy. Group assignments are
// optional; when SmallGroupID is set the member's RegionID/UniversityID must
// match the group's (enforced at the write boundary).
type Member struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	FirstName       string         `gorm:"not null" json:"first_name"`
	SecondName      string         `json:"second_name"`
	Phone           string         `json:"phone"`
	RegionID        uint           `gorm:"index" json:"region_id"`
	UniversityID    uint           `gorm:"index" json:"university_id"`
	SmallGroupID    *uint          `gorm:"index" json:"small_group_id,omitempty"`
	GraduateGroupID *uint          `gorm:"index" json:"graduate_group_id,omitempty"`

	// Relationships
	SmallGroup    *SmallGroup         `gorm:"foreignKey:SmallGroupID" json:"small_group,omitempty"`
	GraduateGroup *GraduateSmallGroup `gorm:"foreignKey:GraduateGroupID" json:"graduate_group,omitempty"`
}

// DisplayName joins first and second name, trimming when either is blank.
func (m Member) DisplayName() string {
	return strings.TrimSpace(m.FirstName + " " + m.SecondName)
}

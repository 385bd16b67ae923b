package models

import (
	"time"

	"gorm.io/gorm"
)

// Region is the top geographic/administrative unit of the national body.
// It owns universities, small groups, and graduate small groups.
type Region struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`

	// Relationships
	Universities   []University         `gorm:"foreignKey:RegionID" json:"universities,omitempty"`
	SmallGroups    []SmallGroup         `gorm:"foreignKey:RegionID" json:"small_groups,omitempty"`
	GraduateGroups []GraduateSmallGroup `gorm:"foreignKey:RegionID" json:"graduate_groups,omitempty"`
}

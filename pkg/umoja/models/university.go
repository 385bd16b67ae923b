package models

import (
	"time"

	"gorm.io/gorm"
)

// University belongs to exactly one Region and owns small groups.
type University struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	RegionID  uint           `gorm:"not null;index" json:"region_id"`

	// Relationships
	Region      Region       `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	SmallGroups []SmallGroup `gorm:"foreignKey:UniversityID" json:"small_groups,omitempty"`
}

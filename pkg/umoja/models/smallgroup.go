package models

import (
	"time"

	"gorm.io/gorm"
)

// SmallGroup belongs to exactly one University. Its RegionID is denormalized
// from the owning university so row filters on region never need a join.
type SmallGroup struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	RegionID     uint           `gorm:"not null;index" json:"region_id"`
	UniversityID uint           `gorm:"not null;index" json:"university_id"`

	// Relationships
	Region     Region     `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	University University `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
	Members    []Member   `gorm:"foreignKey:SmallGroupID" json:"members,omitempty"`
}

// GraduateSmallGroup is the parallel branch for graduates: it belongs to a
// Region directly, never to a University.
type GraduateSmallGroup struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	RegionID  uint           `gorm:"not null;index" json:"region_id"`

	// Relationships
	Region  Region   `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	Members []Member `gorm:"foreignKey:GraduateGroupID" json:"members,omitempty"`
}

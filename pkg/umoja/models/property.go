package models

import (
	"time"

	"gorm.io/gorm"
)

// Property is an asset register row (equipment, books, instruments) owned at
// region level. University and small-group scopes may not manage properties.
type Property struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `json:"description"`
	RegionID     uint           `gorm:"not null;index" json:"region_id"`
	UniversityID uint           `gorm:"index" json:"university_id"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// EventType discriminates the two kinds of attendance events.
type EventType string

const (
	EventPermanent EventType = "permanent"
	EventTraining  EventType = "training"
)

// AttendanceStatus is a member's status for one event.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusExcuse  AttendanceStatus = "excuse"
)

// Event is a permanent event or training owned by a university.
type Event struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Type         EventType      `gorm:"type:varchar(20);not null" json:"type"`
	Date         time.Time      `gorm:"not null" json:"date"`
	RegionID     uint           `gorm:"not null;index" json:"region_id"`
	UniversityID uint           `gorm:"not null;index" json:"university_id"`

	// Relationships
	University University       `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
	Records    []AttendanceRecord `gorm:"foreignKey:EventID" json:"records,omitempty"`
}

// AttendanceRecord is one member's status for one event.
type AttendanceRecord struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	EventID   uint             `gorm:"not null;uniqueIndex:idx_event_member" json:"event_id"`
	MemberID  uint             `gorm:"not null;uniqueIndex:idx_event_member" json:"member_id"`
	Status    AttendanceStatus `gorm:"type:varchar(10);not null" json:"status"`

	// Relationships
	Event  Event  `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

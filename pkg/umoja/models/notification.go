package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification event types produced by the attendance cascade.
const (
	NotifAttendanceMiss NotificationEvent = "attendance_miss"
	NotifUniversityAck  NotificationEvent = "university_acknowledgment"
)

// NotificationEvent discriminates what a notification is about.
type NotificationEvent string

// Notification belongs to one recipient. Hierarchy ids are denormalized from
// the originating small group so the notification list itself can be filtered
// with the same row predicates as everything else. Metadata is a JSON
// document whose shape depends on EventType.
type Notification struct {
	ID              uint              `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
	UserID          uint              `gorm:"not null;index" json:"user_id"`
	EventType       NotificationEvent `gorm:"type:varchar(40);not null;index" json:"event_type"`
	EventID         uint              `gorm:"not null;index" json:"event_id"`
	Subject         string            `gorm:"not null" json:"subject"`
	Message         string            `json:"message"`
	Metadata        string            `gorm:"type:text" json:"metadata"`
	RegionID        uint              `gorm:"index" json:"region_id"`
	UniversityID    uint              `gorm:"index" json:"university_id"`
	SmallGroupID    uint              `gorm:"index" json:"small_group_id"`
	GraduateGroupID uint              `gorm:"index" json:"graduate_group_id"`
	ReadAt          *time.Time        `json:"read_at,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// NotificationPreference holds per-user opt-outs. Absence of a row means all
// alerts are enabled. No column default on AttendanceAlerts: gorm drops
// zero-valued fields carrying a default tag from INSERTs, which would turn an
// explicit opt-out (false) back into true on write.
type NotificationPreference struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	UserID           uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	AttendanceAlerts bool      `json:"attendance_alerts"`
}

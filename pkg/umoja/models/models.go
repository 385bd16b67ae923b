package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: Region must be migrated first as other models depend on it
func AllModels() []interface{} {
	return []interface{}{
		&Region{},
		&University{},
		&SmallGroup{},
		&GraduateSmallGroup{},
		&Member{},
		&User{},
		&UserRole{},
		&Event{},
		&AttendanceRecord{},
		&Notification{},
		&NotificationPreference{},
		&Property{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User must be migrated before Product, which references it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Product{},
		&OIDCIdentity{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

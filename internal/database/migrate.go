package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// Migrate creates or updates the gradebook tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Section{},
		&models.Student{},
		&models.ActivityTemplate{},
		&models.StudentSubmission{},
		&models.RubricScan{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Permission{},
		&models.AccountPermission{},
		&models.Project{},
		&models.FormSubmission{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FormSubmission stores one form document an account submitted for a project.
// At most one row per (account, project) carries IsLatest; older rows are history.
type FormSubmission struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	AccountID string            `gorm:"size:36;not null;index:idx_form_submissions_owner;uniqueIndex:idx_form_submissions_latest,where:is_latest = true" json:"account_id"`
	ProjectID string            `gorm:"size:50;not null;index:idx_form_submissions_owner;uniqueIndex:idx_form_submissions_latest,where:is_latest = true" json:"project_id"`
	Data      datatypes.JSONMap `gorm:"not null" json:"data"`
	IsLatest  bool              `gorm:"not null;index" json:"is_latest"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns an identifier when none was provided.
func (s *FormSubmission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

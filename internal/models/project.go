package models

import (
	"time"

	"gorm.io/datatypes"
)

// Project is an admin-defined form or calculator with access rules.
type Project struct {
	ID                  string                      `gorm:"primaryKey;size:50" json:"id"`
	Name                string                      `gorm:"size:100;not null" json:"name"`
	Description         string                      `gorm:"type:text" json:"description"`
	Path                string                      `gorm:"size:255;not null" json:"path"`
	Component           string                      `gorm:"size:100;not null" json:"component"`
	Category            string                      `gorm:"size:50" json:"category"`
	Version             string                      `gorm:"size:20;not null" json:"version"`
	Author              string                      `gorm:"size:100" json:"author"`
	Enabled             bool                        `gorm:"not null;index" json:"enabled"`
	IsPublic            bool                        `gorm:"not null" json:"is_public"`
	RequiredPermissions datatypes.JSONSlice[string] `json:"required_permissions"`
	Metadata            datatypes.JSONMap           `json:"metadata"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// Requirements returns the permission ids needed to use the project.
func (p Project) Requirements() []string {
	if len(p.RequiredPermissions) == 0 {
		return nil
	}
	return []string(p.RequiredPermissions)
}

package dto

import (
	"time"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// ProjectResponse describes a project definition.
type ProjectResponse struct {
	ID                  string                 `json:"id"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	Path                string                 `json:"path"`
	Component           string                 `json:"component"`
	Category            string                 `json:"category"`
	Version             string                 `json:"version"`
	Author              string                 `json:"author"`
	Enabled             bool                   `json:"enabled"`
	IsPublic            bool                   `json:"is_public"`
	RequiredPermissions []string               `json:"required_permissions"`
	Metadata            map[string]interface{} `json:"metadata"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// NewProjectResponse converts a project model into its DTO.
func NewProjectResponse(project models.Project) ProjectResponse {
	required := project.Requirements()
	if required == nil {
		required = []string{}
	}
	metadata := map[string]interface{}(project.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return ProjectResponse{
		ID:                  project.ID,
		Name:                project.Name,
		Description:         project.Description,
		Path:                project.Path,
		Component:           project.Component,
		Category:            project.Category,
		Version:             project.Version,
		Author:              project.Author,
		Enabled:             project.Enabled,
		IsPublic:            project.IsPublic,
		RequiredPermissions: required,
		Metadata:            metadata,
		CreatedAt:           project.CreatedAt,
		UpdatedAt:           project.UpdatedAt,
	}
}

// ProjectCreateRequest defines a new project.
type ProjectCreateRequest struct {
	ID                  string                 `json:"id" validate:"required,max=50"`
	Name                string                 `json:"name" validate:"required,max=100"`
	Description         string                 `json:"description" validate:"required"`
	Path                string                 `json:"path" validate:"required,max=255"`
	Component           string                 `json:"component" validate:"required,max=100"`
	Category            string                 `json:"category" validate:"omitempty,max=50"`
	Version             string                 `json:"version" validate:"omitempty,max=20"`
	Author              string                 `json:"author" validate:"omitempty,max=100"`
	Enabled             *bool                  `json:"enabled"`
	IsPublic            bool                   `json:"is_public"`
	RequiredPermissions []string               `json:"required_permissions" validate:"omitempty,dive,required,max=50"`
	Metadata            map[string]interface{} `json:"metadata"`
}

// ProjectUpdateRequest captures a partial project update.
type ProjectUpdateRequest struct {
	Name                *string                `json:"name" validate:"omitempty,min=1,max=100"`
	Description         *string                `json:"description"`
	Path                *string                `json:"path" validate:"omitempty,min=1,max=255"`
	Component           *string                `json:"component" validate:"omitempty,min=1,max=100"`
	Category            *string                `json:"category" validate:"omitempty,max=50"`
	Version             *string                `json:"version" validate:"omitempty,max=20"`
	Author              *string                `json:"author" validate:"omitempty,max=100"`
	Enabled             *bool                  `json:"enabled"`
	IsPublic            *bool                  `json:"is_public"`
	RequiredPermissions *[]string              `json:"required_permissions" validate:"omitempty,dive,required,max=50"`
	Metadata            map[string]interface{} `json:"metadata"`
}

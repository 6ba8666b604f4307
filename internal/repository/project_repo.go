package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// ProjectChanges carries a partial project update. Nil fields are left untouched.
type ProjectChanges struct {
	Name                *string
	Description         *string
	Path                *string
	Component           *string
	Category            *string
	Version             *string
	Author              *string
	Enabled             *bool
	IsPublic            *bool
	RequiredPermissions *[]string
	Metadata            map[string]interface{}
}

// IsEmpty reports whether the update would change nothing.
func (c ProjectChanges) IsEmpty() bool {
	return len(c.columns()) == 0
}

func (c ProjectChanges) columns() map[string]interface{} {
	updates := make(map[string]interface{})
	if c.Name != nil {
		updates["name"] = *c.Name
	}
	if c.Description != nil {
		updates["description"] = *c.Description
	}
	if c.Path != nil {
		updates["path"] = *c.Path
	}
	if c.Component != nil {
		updates["component"] = *c.Component
	}
	if c.Category != nil {
		updates["category"] = *c.Category
	}
	if c.Version != nil {
		updates["version"] = *c.Version
	}
	if c.Author != nil {
		updates["author"] = *c.Author
	}
	if c.Enabled != nil {
		updates["enabled"] = *c.Enabled
	}
	if c.IsPublic != nil {
		updates["is_public"] = *c.IsPublic
	}
	if c.RequiredPermissions != nil {
		updates["required_permissions"] = datatypes.JSONSlice[string](*c.RequiredPermissions)
	}
	if c.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(c.Metadata)
	}
	return updates
}

// ProjectRepository stores project definitions.
type ProjectRepository interface {
	List(ctx context.Context, enabledOnly bool) ([]models.Project, error)
	GetByID(ctx context.Context, id string) (models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, id string, changes ProjectChanges) (models.Project, error)
	Delete(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, project *models.Project) error
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository constructs the project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) List(ctx context.Context, enabledOnly bool) ([]models.Project, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}

	projects := []models.Project{}
	if err := query.Order("category ASC").Order("name ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&project).Error; err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, id string, changes ProjectChanges) (models.Project, error) {
	updates := changes.columns()
	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Project{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Project{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes the project together with every submission made against it.
func (r *projectRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.FormSubmission{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Project{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// Upsert inserts the project or leaves an existing row with the same id alone.
func (r *projectRepository) Upsert(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(project).Error
}

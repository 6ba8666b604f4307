package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

var projectIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Defaults applied to new projects when the payload omits them.
const (
	DefaultProjectVersion  = "1.0.0"
	DefaultProjectAuthor   = "System"
	DefaultProjectCategory = "other"
)

// ProjectService exposes the project catalog publicly and to admins.
type ProjectService interface {
	ListEnabled(ctx context.Context) ([]dto.ProjectResponse, error)
	GetEnabled(ctx context.Context, id string) (dto.ProjectResponse, error)
	ListAll(ctx context.Context) ([]dto.ProjectResponse, error)
	Get(ctx context.Context, id string) (dto.ProjectResponse, error)
	Create(ctx context.Context, actor Actor, req dto.ProjectCreateRequest, meta RequestMeta) (dto.ProjectResponse, error)
	Update(ctx context.Context, actor Actor, id string, req dto.ProjectUpdateRequest, meta RequestMeta) (dto.ProjectResponse, error)
	Delete(ctx context.Context, actor Actor, id string, meta RequestMeta) error
}

type projectService struct {
	projects     repository.ProjectRepository
	permissions  repository.PermissionRepository
	recorder     ActivityRecorder
	validator    *validator.Validate
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewProjectService constructs the project catalog service.
func NewProjectService(projects repository.ProjectRepository, permissions repository.PermissionRepository, recorder ActivityRecorder, validate *validator.Validate, storeTimeout time.Duration, logger zerolog.Logger) ProjectService {
	return &projectService{
		projects:     projects,
		permissions:  permissions,
		recorder:     recorder,
		validator:    validate,
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "project_service").Logger(),
	}
}

func (s *projectService) ListEnabled(ctx context.Context) ([]dto.ProjectResponse, error) {
	return s.list(ctx, true)
}

func (s *projectService) ListAll(ctx context.Context) ([]dto.ProjectResponse, error) {
	return s.list(ctx, false)
}

func (s *projectService) list(ctx context.Context, enabledOnly bool) ([]dto.ProjectResponse, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	projects, err := s.projects.List(storeCtx, enabledOnly)
	if err != nil {
		return nil, storeFailure("list projects", err)
	}

	responses := make([]dto.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		responses = append(responses, dto.NewProjectResponse(project))
	}
	return responses, nil
}

// GetEnabled hides disabled projects behind not_found.
func (s *projectService) GetEnabled(ctx context.Context, id string) (dto.ProjectResponse, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	if !project.Enabled {
		return dto.ProjectResponse{}, notFound("Project not found")
	}
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) Get(ctx context.Context, id string) (dto.ProjectResponse, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) Create(ctx context.Context, actor Actor, req dto.ProjectCreateRequest, meta RequestMeta) (dto.ProjectResponse, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	req.Path = strings.TrimSpace(req.Path)
	req.Component = strings.TrimSpace(req.Component)
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationFailure(err)
	}

	id := req.ID
	if !projectIDPattern.MatchString(id) {
		return dto.ProjectResponse{}, invalidInput("Project ID must be a lowercase slug")
	}

	required := uniqueSorted(req.RequiredPermissions)
	if err := s.checkPermissions(ctx, required); err != nil {
		return dto.ProjectResponse{}, err
	}

	project := models.Project{
		ID:                  id,
		Name:                req.Name,
		Description:         req.Description,
		Path:                req.Path,
		Component:           req.Component,
		Category:            withDefault(req.Category, DefaultProjectCategory),
		Version:             withDefault(req.Version, DefaultProjectVersion),
		Author:              withDefault(req.Author, DefaultProjectAuthor),
		Enabled:             req.Enabled == nil || *req.Enabled,
		IsPublic:            req.IsPublic,
		RequiredPermissions: datatypes.JSONSlice[string](required),
		Metadata:            datatypes.JSONMap(req.Metadata),
	}
	if project.Metadata == nil {
		project.Metadata = datatypes.JSONMap{}
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.projects.GetByID(storeCtx, project.ID); err == nil {
		return dto.ProjectResponse{}, conflict("Project ID already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ProjectResponse{}, storeFailure("lookup project", err)
	}

	if err := s.projects.Create(storeCtx, &project); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ProjectResponse{}, conflict("Project ID already exists")
		}
		return dto.ProjectResponse{}, storeFailure("create project", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionProjectCreated,
		Details:   map[string]interface{}{"project_id": project.ID, "project_name": project.Name},
		Meta:      meta,
	})

	return dto.NewProjectResponse(project), nil
}

func (s *projectService) Update(ctx context.Context, actor Actor, id string, req dto.ProjectUpdateRequest, meta RequestMeta) (dto.ProjectResponse, error) {
	req.Name = trimmedPtr(req.Name)
	req.Path = trimmedPtr(req.Path)
	req.Component = trimmedPtr(req.Component)
	req.Category = trimmedPtr(req.Category)
	req.Version = trimmedPtr(req.Version)
	req.Author = trimmedPtr(req.Author)
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationFailure(err)
	}
	if field := blankProjectField(req); field != "" {
		return dto.ProjectResponse{}, invalidInput("Project " + field + " must not be blank")
	}

	changes := repository.ProjectChanges{
		Name:        req.Name,
		Description: req.Description,
		Path:        req.Path,
		Component:   req.Component,
		Category:    req.Category,
		Version:     req.Version,
		Author:      req.Author,
		Enabled:     req.Enabled,
		IsPublic:    req.IsPublic,
		Metadata:    req.Metadata,
	}
	if req.RequiredPermissions != nil {
		required := uniqueSorted(*req.RequiredPermissions)
		if err := s.checkPermissions(ctx, required); err != nil {
			return dto.ProjectResponse{}, err
		}
		changes.RequiredPermissions = &required
	}
	if changes.IsEmpty() {
		return dto.ProjectResponse{}, invalidInput("No fields to update")
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	project, err := s.projects.Update(storeCtx, id, changes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, notFound("Project not found")
		}
		return dto.ProjectResponse{}, storeFailure("update project", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionProjectUpdated,
		Details: map[string]interface{}{
			"project_id":     project.ID,
			"updated_fields": updatedProjectFields(req),
		},
		Meta: meta,
	})

	return dto.NewProjectResponse(project), nil
}

// Delete removes the project and every submission made against it.
func (s *projectService) Delete(ctx context.Context, actor Actor, id string, meta RequestMeta) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	deleted, err := s.projects.Delete(storeCtx, project.ID)
	if err != nil {
		return storeFailure("delete project", err)
	}
	if !deleted {
		return notFound("Project not found")
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: actor.AccountID,
		Action:    models.ActionProjectDeleted,
		Details:   map[string]interface{}{"project_id": project.ID, "project_name": project.Name},
		Meta:      meta,
	})

	return nil
}

func (s *projectService) load(ctx context.Context, id string) (models.Project, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	project, err := s.projects.GetByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, notFound("Project not found")
		}
		return models.Project{}, storeFailure("load project", err)
	}
	return project, nil
}

func (s *projectService) checkPermissions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	unknown, err := s.permissions.UnknownIDs(storeCtx, ids)
	if err != nil {
		return storeFailure("check permissions", err)
	}
	if len(unknown) > 0 {
		return invalidInput("Unknown permissions: " + strings.Join(unknown, ", "))
	}
	return nil
}

func updatedProjectFields(req dto.ProjectUpdateRequest) []string {
	fields := make([]string, 0, 11)
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(req.Name != nil, "name")
	add(req.Description != nil, "description")
	add(req.Path != nil, "path")
	add(req.Component != nil, "component")
	add(req.Category != nil, "category")
	add(req.Version != nil, "version")
	add(req.Author != nil, "author")
	add(req.Enabled != nil, "enabled")
	add(req.IsPublic != nil, "is_public")
	add(req.RequiredPermissions != nil, "required_permissions")
	add(req.Metadata != nil, "metadata")
	return fields
}

// blankProjectField names the first present field that is empty once trimmed.
func blankProjectField(req dto.ProjectUpdateRequest) string {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", req.Name},
		{"path", req.Path},
		{"component", req.Component},
		{"category", req.Category},
		{"version", req.Version},
		{"author", req.Author},
	}
	for _, field := range fields {
		if field.value != nil && *field.value == "" {
			return field.name
		}
	}
	return ""
}

func withDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/observability"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

const (
	defaultHistoryLimit = 20
	defaultLatestLimit  = 10
	maxHistoryLimit     = 100
)

// InputService stores form documents behind the project access gate.
type InputService interface {
	Save(ctx context.Context, actor Actor, projectID string, document interface{}, meta RequestMeta) (dto.SubmissionResponse, error)
	LastInput(ctx context.Context, actor Actor, projectID string) (dto.LastInputResponse, error)
	History(ctx context.Context, actor Actor, projectID string, limit int) ([]dto.SubmissionResponse, error)
	LatestForAccount(ctx context.Context, actor Actor, limit int) ([]dto.SubmissionResponse, error)
}

type inputService struct {
	accounts     repository.AccountRepository
	projects     repository.ProjectRepository
	submissions  repository.SubmissionRepository
	gate         *AccessGate
	recorder     ActivityRecorder
	storeTimeout time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewInputService constructs the latest-input service.
func NewInputService(accounts repository.AccountRepository, projects repository.ProjectRepository, submissions repository.SubmissionRepository, gate *AccessGate, recorder ActivityRecorder, storeTimeout time.Duration, logger zerolog.Logger) InputService {
	return &inputService{
		accounts:     accounts,
		projects:     projects,
		submissions:  submissions,
		gate:         gate,
		recorder:     recorder,
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "input_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/formdesk-api/internal/service/input"),
	}
}

// Save replaces the latest document for the caller and project. Earlier
// documents stay as history.
func (s *inputService) Save(ctx context.Context, actor Actor, projectID string, document interface{}, meta RequestMeta) (dto.SubmissionResponse, error) {
	data, ok := document.(map[string]interface{})
	if !ok || data == nil {
		return dto.SubmissionResponse{}, invalidInput("Invalid input data: a JSON object is required")
	}

	spanCtx, span := s.tracer.Start(ctx, "inputs.save", trace.WithAttributes(
		attribute.String("input.project_id", projectID),
	))
	defer span.End()

	account, project, err := s.authorize(spanCtx, actor, projectID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	storeCtx, cancel := storeContext(spanCtx, s.storeTimeout)
	defer cancel()

	submission, err := s.submissions.SaveLatest(storeCtx, account.ID, project.ID, datatypes.JSONMap(data))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, notFound("User not found")
		}
		return dto.SubmissionResponse{}, storeFailure("save input", err)
	}

	observability.FormInputsSaved().WithLabelValues(project.ID).Inc()
	s.recorder.Record(spanCtx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionFormInputSaved,
		Details: map[string]interface{}{
			"project_id":   project.ID,
			"project_name": project.Name,
			"data_keys":    sortedKeys(data),
		},
		Meta: meta,
	})

	return dto.NewSubmissionResponse(submission), nil
}

func (s *inputService) LastInput(ctx context.Context, actor Actor, projectID string) (dto.LastInputResponse, error) {
	account, project, err := s.authorize(ctx, actor, projectID)
	if err != nil {
		return dto.LastInputResponse{}, err
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	response := dto.LastInputResponse{ProjectID: project.ID}
	submission, err := s.submissions.GetLatest(storeCtx, account.ID, project.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response, nil
		}
		return dto.LastInputResponse{}, storeFailure("load last input", err)
	}

	savedAt := submission.CreatedAt
	response.Data = dto.NewSubmissionResponse(submission).Data
	response.SavedAt = &savedAt
	return response, nil
}

func (s *inputService) History(ctx context.Context, actor Actor, projectID string, limit int) ([]dto.SubmissionResponse, error) {
	account, project, err := s.authorize(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	submissions, err := s.submissions.History(storeCtx, account.ID, project.ID, clampLimit(limit))
	if err != nil {
		return nil, storeFailure("load input history", err)
	}
	return submissionResponses(submissions), nil
}

func (s *inputService) LatestForAccount(ctx context.Context, actor Actor, limit int) ([]dto.SubmissionResponse, error) {
	if actor.AccountID == "" {
		return nil, newError(KindAuthenticationFailure, "Authentication required", nil)
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultLatestLimit
	}
	submissions, err := s.submissions.LatestForAccount(storeCtx, actor.AccountID, clampLimit(limit))
	if err != nil {
		return nil, storeFailure("load latest inputs", err)
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		response := dto.NewSubmissionResponse(submission.FormSubmission)
		if submission.ProjectName != nil {
			response.ProjectName = *submission.ProjectName
		}
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *inputService) authorize(ctx context.Context, actor Actor, projectID string) (models.Account, models.Project, error) {
	if actor.AccountID == "" {
		return models.Account{}, models.Project{}, newError(KindAuthenticationFailure, "Authentication required", nil)
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := s.accounts.GetByID(storeCtx, actor.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, models.Project{}, notFound("User not found")
		}
		return models.Account{}, models.Project{}, storeFailure("load account", err)
	}

	project, err := s.projects.GetByID(storeCtx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, models.Project{}, notFound("Project not found")
		}
		return models.Account{}, models.Project{}, storeFailure("load project", err)
	}

	allowed, err := s.gate.CanAccess(ctx, account, project)
	if err != nil {
		return models.Account{}, models.Project{}, err
	}
	if !allowed {
		return models.Account{}, models.Project{}, forbidden("Access denied to this project")
	}

	return account, project, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func submissionResponses(submissions []models.FormSubmission) []dto.SubmissionResponse {
	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission))
	}
	return responses
}

func sortedKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

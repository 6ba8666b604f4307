package dto

import (
	"time"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// SaveInputRequest wraps the form document submitted for a project.
type SaveInputRequest struct {
	Data interface{} `json:"data"`
}

// SubmissionResponse describes a stored form document.
type SubmissionResponse struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"project_id"`
	ProjectName string                 `json:"project_name,omitempty"`
	Data        map[string]interface{} `json:"data"`
	IsLatest    bool                   `json:"is_latest"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewSubmissionResponse converts a submission model into its DTO.
func NewSubmissionResponse(submission models.FormSubmission) SubmissionResponse {
	data := map[string]interface{}(submission.Data)
	if data == nil {
		data = map[string]interface{}{}
	}
	return SubmissionResponse{
		ID:        submission.ID,
		ProjectID: submission.ProjectID,
		Data:      data,
		IsLatest:  submission.IsLatest,
		CreatedAt: submission.CreatedAt,
	}
}

// LastInputResponse is the latest document for a project. Data is null when nothing was saved yet.
type LastInputResponse struct {
	ProjectID string                 `json:"project_id"`
	Data      map[string]interface{} `json:"data"`
	SavedAt   *time.Time             `json:"saved_at"`
}

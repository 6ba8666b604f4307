package dto

import (
	"time"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// ActivityListRequest filters the audit listing.
type ActivityListRequest struct {
	Page      int
	PageSize  int
	AccountID string
	Action    string
	From      *time.Time
	Until     *time.Time
}

// ActivityResponse serializes an audit record.
type ActivityResponse struct {
	ID        uint                   `json:"id"`
	AccountID *string                `json:"user_id"`
	Username  *string                `json:"username,omitempty"`
	UserName  *string                `json:"user_name,omitempty"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	IPAddress *string                `json:"ip_address"`
	UserAgent *string                `json:"user_agent"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewActivityResponse converts an audit model into its DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	details := map[string]interface{}(entry.Details)
	if details == nil {
		details = map[string]interface{}{}
	}
	return ActivityResponse{
		ID:        entry.ID,
		AccountID: entry.AccountID,
		Action:    entry.Action,
		Details:   details,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: entry.CreatedAt,
	}
}

// ActivityListResponse wraps a page of audit records.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

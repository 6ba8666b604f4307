package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// ActivityLogFilter narrows activity log queries. Since is inclusive, Until exclusive.
type ActivityLogFilter struct {
	Page      int
	PageSize  int
	AccountID string
	Action    string
	Since     *time.Time
	Until     *time.Time
}

// ActivityRecord is an audit entry joined with the acting account, when it still exists.
type ActivityRecord struct {
	models.ActivityLog
	Username    *string
	DisplayName *string
}

// ActivityLogRepository persists audit trail events.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]ActivityRecord, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]ActivityRecord, int64, error) {
	query := r.db.WithContext(ctx).Table("activity_logs AS al")

	if filter.AccountID != "" {
		query = query.Where("al.account_id = ?", filter.AccountID)
	}
	if filter.Action != "" {
		query = query.Where("al.action = ?", filter.Action)
	}
	if filter.Since != nil {
		query = query.Where("al.created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("al.created_at < ?", *filter.Until)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	records := []ActivityRecord{}
	err := query.
		Select("al.*, a.username AS username, a.display_name AS display_name").
		Joins("LEFT JOIN accounts AS a ON a.id = al.account_id").
		Order("al.created_at DESC").
		Order("al.id DESC").
		Scan(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *activityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}

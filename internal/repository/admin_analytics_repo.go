package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// AccountTotals counts accounts by state and authentication kind.
type AccountTotals struct {
	Total  int64
	Active int64
	Admins int64
	ByKind map[string]int64
}

// ProjectSubmissionCount is the number of stored documents for one project.
type ProjectSubmissionCount struct {
	ProjectID   string
	Submissions int64
	Submitters  int64
}

// AdminAnalyticsRepository supplies data for the administrator summary.
type AdminAnalyticsRepository interface {
	CountAccounts(ctx context.Context) (AccountTotals, error)
	CountSubmissionsByProject(ctx context.Context) ([]ProjectSubmissionCount, error)
	ListActivitySince(ctx context.Context, since time.Time) ([]models.ActivityLog, error)
}

type adminAnalyticsRepository struct {
	db *gorm.DB
}

// NewAdminAnalyticsRepository constructs the analytics repository.
func NewAdminAnalyticsRepository(db *gorm.DB) AdminAnalyticsRepository {
	return &adminAnalyticsRepository{db: db}
}

func (r *adminAnalyticsRepository) CountAccounts(ctx context.Context) (AccountTotals, error) {
	totals := AccountTotals{ByKind: map[string]int64{}}
	base := r.db.WithContext(ctx).Model(&models.Account{})

	if err := base.Session(&gorm.Session{}).Count(&totals.Total).Error; err != nil {
		return AccountTotals{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&totals.Active).Error; err != nil {
		return AccountTotals{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_admin = ?", true).Count(&totals.Admins).Error; err != nil {
		return AccountTotals{}, err
	}

	var rows []struct {
		AuthKind string
		Count    int64
	}
	if err := base.Session(&gorm.Session{}).
		Select("auth_kind, COUNT(*) AS count").
		Group("auth_kind").
		Scan(&rows).Error; err != nil {
		return AccountTotals{}, err
	}
	for _, row := range rows {
		totals.ByKind[row.AuthKind] = row.Count
	}

	return totals, nil
}

func (r *adminAnalyticsRepository) CountSubmissionsByProject(ctx context.Context) ([]ProjectSubmissionCount, error) {
	counts := []ProjectSubmissionCount{}
	err := r.db.WithContext(ctx).
		Model(&models.FormSubmission{}).
		Select("project_id, COUNT(*) AS submissions, COUNT(DISTINCT account_id) AS submitters").
		Group("project_id").
		Order("project_id ASC").
		Scan(&counts).Error
	return counts, err
}

func (r *adminAnalyticsRepository) ListActivitySince(ctx context.Context, since time.Time) ([]models.ActivityLog, error) {
	entries := []models.ActivityLog{}
	err := r.db.WithContext(ctx).
		Select("id", "action", "created_at").
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

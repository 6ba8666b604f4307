package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// SubmissionRepository persists form documents and tracks the latest one per account and project.
type SubmissionRepository interface {
	SaveLatest(ctx context.Context, accountID, projectID string, data datatypes.JSONMap) (models.FormSubmission, error)
	GetLatest(ctx context.Context, accountID, projectID string) (models.FormSubmission, error)
	History(ctx context.Context, accountID, projectID string, limit int) ([]models.FormSubmission, error)
	LatestForAccount(ctx context.Context, accountID string, limit int) ([]LatestSubmission, error)
	CountForPair(ctx context.Context, accountID, projectID string) (total int64, latest int64, err error)
}

// LatestSubmission is a latest document joined with its project's name. ProjectName is nil
// when the project no longer exists.
type LatestSubmission struct {
	models.FormSubmission
	ProjectName *string
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// SaveLatest supersedes the current latest row and inserts the new one in a single
// transaction. The owning account row is locked so writers for the same account
// run one after another; the partial unique index rejects anything that slips through.
func (r *submissionRepository) SaveLatest(ctx context.Context, accountID, projectID string, data datatypes.JSONMap) (models.FormSubmission, error) {
	if data == nil {
		data = datatypes.JSONMap{}
	}

	var submission models.FormSubmission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", accountID).
			Take(&owner).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.FormSubmission{}).
			Where("account_id = ? AND project_id = ? AND is_latest = ?", accountID, projectID, true).
			Update("is_latest", false).Error; err != nil {
			return err
		}

		submission = models.FormSubmission{
			AccountID: accountID,
			ProjectID: projectID,
			Data:      data,
			IsLatest:  true,
		}
		return tx.Create(&submission).Error
	})
	if err != nil {
		return models.FormSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetLatest(ctx context.Context, accountID, projectID string) (models.FormSubmission, error) {
	var submission models.FormSubmission
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND project_id = ? AND is_latest = ?", accountID, projectID, true).
		Take(&submission).Error
	if err != nil {
		return models.FormSubmission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) History(ctx context.Context, accountID, projectID string, limit int) ([]models.FormSubmission, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ? AND project_id = ?", accountID, projectID).
		Order("created_at DESC").
		Order("is_latest DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	submissions := []models.FormSubmission{}
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) LatestForAccount(ctx context.Context, accountID string, limit int) ([]LatestSubmission, error) {
	query := r.db.WithContext(ctx).
		Table("form_submissions AS fs").
		Select("fs.*, p.name AS project_name").
		Joins("LEFT JOIN projects AS p ON p.id = fs.project_id").
		Where("fs.account_id = ? AND fs.is_latest = ?", accountID, true).
		Order("fs.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	submissions := []LatestSubmission{}
	if err := query.Scan(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) CountForPair(ctx context.Context, accountID, projectID string) (int64, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.FormSubmission{}).
		Where("account_id = ? AND project_id = ?", accountID, projectID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var latest int64
	if err := base.Session(&gorm.Session{}).Where("is_latest = ?", true).Count(&latest).Error; err != nil {
		return 0, 0, err
	}

	return total, latest, nil
}

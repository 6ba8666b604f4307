package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// PermissionRepository manages the permission catalog and account grants.
type PermissionRepository interface {
	ListCatalog(ctx context.Context) ([]models.Permission, error)
	UpsertCatalog(ctx context.Context, permissions []models.Permission) error
	UnknownIDs(ctx context.Context, ids []string) ([]string, error)
	ListForAccount(ctx context.Context, accountID string) ([]string, error)
	SetForAccount(ctx context.Context, accountID string, permissionIDs []string, grantedBy *string) error
}

type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository constructs the permission repository.
func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) ListCatalog(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *permissionRepository) UpsertCatalog(ctx context.Context, permissions []models.Permission) error {
	if len(permissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
	}).Create(&permissions).Error
}

func (r *permissionRepository) UnknownIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var known []string
	if err := r.db.WithContext(ctx).Model(&models.Permission{}).Where("id IN ?", ids).Pluck("id", &known).Error; err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(known))
	for _, id := range known {
		present[id] = struct{}{}
	}

	var unknown []string
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}

func (r *permissionRepository) ListForAccount(ctx context.Context, accountID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.AccountPermission{}).
		Where("account_id = ?", accountID).
		Order("permission_id ASC").
		Pluck("permission_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetForAccount replaces every grant of the account in one transaction.
// Concurrent calls for the same account resolve last-writer-wins.
func (r *permissionRepository) SetForAccount(ctx context.Context, accountID string, permissionIDs []string, grantedBy *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.AccountPermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}

		now := time.Now().UTC()
		grants := make([]models.AccountPermission, 0, len(permissionIDs))
		for _, id := range permissionIDs {
			grants = append(grants, models.AccountPermission{
				AccountID:    accountID,
				PermissionID: id,
				GrantedBy:    grantedBy,
				GrantedAt:    now,
			})
		}
		return tx.Create(&grants).Error
	})
}

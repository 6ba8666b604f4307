package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
)

// AccountChanges carries a partial account update. Nil fields are left untouched.
// An empty string for Email or AvatarRef clears the column.
type AccountChanges struct {
	DisplayName *string
	Email       *string
	AvatarRef   *string
	ExternalID  *string
	IsActive    *bool
	IsAdmin     *bool
}

// IsEmpty reports whether the update would change nothing.
func (c AccountChanges) IsEmpty() bool {
	return c.DisplayName == nil && c.Email == nil && c.AvatarRef == nil &&
		c.ExternalID == nil && c.IsActive == nil && c.IsAdmin == nil
}

// Fields lists the names of the fields present in the update.
func (c AccountChanges) Fields() []string {
	fields := make([]string, 0, 6)
	if c.DisplayName != nil {
		fields = append(fields, "display_name")
	}
	if c.Email != nil {
		fields = append(fields, "email")
	}
	if c.AvatarRef != nil {
		fields = append(fields, "avatar_ref")
	}
	if c.ExternalID != nil {
		fields = append(fields, "external_id")
	}
	if c.IsActive != nil {
		fields = append(fields, "is_active")
	}
	if c.IsAdmin != nil {
		fields = append(fields, "is_admin")
	}
	return fields
}

// AccountRepository owns account records.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByUsername(ctx context.Context, username string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (models.Account, error)
	List(ctx context.Context, page, pageSize int) ([]models.Account, int64, error)
	Count(ctx context.Context) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)
	Update(ctx context.Context, id string, changes AccountChanges) (models.Account, error)
	UpdateCredential(ctx context.Context, id, credentialHash string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository constructs an account repository.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *accountRepository) GetByExternalID(ctx context.Context, externalID string) (models.Account, error) {
	return r.first(ctx, "external_id = ?", externalID)
}

func (r *accountRepository) first(ctx context.Context, query string, arg interface{}) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&account).Error; err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) List(ctx context.Context, page, pageSize int) ([]models.Account, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Account{})

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var accounts []models.Account
	if err := query.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error
	return total, err
}

func (r *accountRepository) HasAdmin(ctx context.Context) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("is_admin = ?", true).Count(&total).Error
	return total > 0, err
}

func (r *accountRepository) Update(ctx context.Context, id string, changes AccountChanges) (models.Account, error) {
	if changes.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if changes.DisplayName != nil {
		updates["display_name"] = *changes.DisplayName
	}
	if changes.Email != nil {
		updates["email"] = nullable(*changes.Email)
	}
	if changes.AvatarRef != nil {
		updates["avatar_ref"] = nullable(*changes.AvatarRef)
	}
	if changes.ExternalID != nil {
		updates["external_id"] = nullable(*changes.ExternalID)
	}
	if changes.IsActive != nil {
		updates["is_active"] = *changes.IsActive
	}
	if changes.IsAdmin != nil {
		updates["is_admin"] = *changes.IsAdmin
	}

	result := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Account{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Account{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *accountRepository) UpdateCredential(ctx context.Context, id, credentialHash string) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"credential_hash": credentialHash,
		"updated_at":      time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the account with its grants and submissions. Audit rows are kept
// with their account reference cleared. Policy checks belong to the caller.
func (r *accountRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.AccountPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.FormSubmission{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ActivityLog{}).Where("account_id = ?", id).Update("account_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Account{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func nullable(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
)

func TestAccountRepositoryCreateRejectsDuplicateUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Account{Username: "alice", AuthKind: models.AuthKindLocal, DisplayName: "Alice", IsActive: true}))

	err := repo.Create(ctx, &models.Account{Username: "alice", AuthKind: models.AuthKindLocal, DisplayName: "Other", IsActive: true})
	require.Error(t, err)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestAccountRepositoryLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	account := models.Account{
		Username:    "bob",
		AuthKind:    models.AuthKindGoogle,
		DisplayName: "Bob",
		Email:       strPtr("bob@example.com"),
		ExternalID:  strPtr("google-123"),
		IsActive:    true,
	}
	require.NoError(t, repo.Create(ctx, &account))
	require.NotEmpty(t, account.ID)

	byID, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", byID.Username)

	byEmail, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, byEmail.ID)

	byExternal, err := repo.GetByExternalID(ctx, "google-123")
	require.NoError(t, err)
	require.Equal(t, account.ID, byExternal.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAccountRepositoryUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	account := createAccount(t, db, "carol")

	unchanged, err := repo.Update(ctx, account.ID, AccountChanges{})
	require.NoError(t, err)
	require.Equal(t, account.DisplayName, unchanged.DisplayName)
	require.Equal(t, account.UpdatedAt.Unix(), unchanged.UpdatedAt.Unix())

	updated, err := repo.Update(ctx, account.ID, AccountChanges{
		DisplayName: strPtr("Carol C"),
		Email:       strPtr("carol@example.com"),
		IsActive:    boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "Carol C", updated.DisplayName)
	require.Equal(t, "carol@example.com", *updated.Email)
	require.False(t, updated.IsActive)
	require.False(t, updated.UpdatedAt.Before(account.UpdatedAt))

	cleared, err := repo.Update(ctx, account.ID, AccountChanges{Email: strPtr("")})
	require.NoError(t, err)
	require.Nil(t, cleared.Email)

	_, err = repo.Update(ctx, "missing", AccountChanges{DisplayName: strPtr("x")})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAccountRepositoryUpdateCredential(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	account := createAccount(t, db, "dave")

	require.NoError(t, repo.UpdateCredential(ctx, account.ID, "hash-value"))

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CredentialHash)
	require.Equal(t, "hash-value", *stored.CredentialHash)

	require.ErrorIs(t, repo.UpdateCredential(ctx, "missing", "hash"), gorm.ErrRecordNotFound)
}

func TestAccountRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	account := createAccount(t, db, "erin")

	require.NoError(t, db.Create(&models.Permission{ID: "bmi_access", Name: "BMI"}).Error)
	require.NoError(t, NewPermissionRepository(db).SetForAccount(ctx, account.ID, []string{"bmi_access"}, nil))
	_, err := NewSubmissionRepository(db).SaveLatest(ctx, account.ID, "bmi-calculator", datatypes.JSONMap{"weight": 70})
	require.NoError(t, err)
	accountID := account.ID
	require.NoError(t, db.Create(&models.ActivityLog{AccountID: &accountID, Action: models.ActionLogin, Details: datatypes.JSONMap{}}).Error)

	deleted, err := repo.Delete(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	var grants, submissions int64
	require.NoError(t, db.Model(&models.AccountPermission{}).Count(&grants).Error)
	require.NoError(t, db.Model(&models.FormSubmission{}).Count(&submissions).Error)
	require.Zero(t, grants)
	require.Zero(t, submissions)

	var logs []models.ActivityLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Nil(t, logs[0].AccountID)

	deleted, err = repo.Delete(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestAccountRepositoryListPaginatesNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	first := createAccount(t, db, "first")
	require.NoError(t, db.Model(&first).Update("created_at", first.CreatedAt.Add(-time.Hour)).Error)
	createAccount(t, db, "second")

	accounts, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, accounts, 1)
	require.Equal(t, "second", accounts[0].Username)

	accounts, _, err = repo.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "first", accounts[0].Username)
}

func TestAccountRepositoryHasAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	has, err := repo.HasAdmin(ctx)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, repo.Create(ctx, &models.Account{Username: "root", AuthKind: models.AuthKindLocal, DisplayName: "Root", IsActive: true, IsAdmin: true}))

	has, err = repo.HasAdmin(ctx)
	require.NoError(t, err)
	require.True(t, has)
}

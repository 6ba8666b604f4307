package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

// DefaultPermissions is the permission catalog installed on startup.
var DefaultPermissions = []models.Permission{
	{ID: "bmi_access", Name: "BMI Calculator Access", Description: "Allows using the BMI calculator"},
	{ID: "tdee_access", Name: "TDEE Calculator Access", Description: "Allows using the TDEE calculator"},
	{ID: models.AdminPermission, Name: "Administrator", Description: "Full administrative access"},
}

// DefaultProjects returns the projects installed when seeding is enabled.
func DefaultProjects() []models.Project {
	return []models.Project{
		{
			ID:                  "bmi-calculator",
			Name:                "BMI Calculator",
			Description:         "Body mass index calculator",
			Path:                "/projects/bmi-calculator",
			Component:           "BMICalculator",
			Category:            "health",
			Version:             DefaultProjectVersion,
			Author:              "Formdesk",
			Enabled:             true,
			IsPublic:            true,
			RequiredPermissions: datatypes.JSONSlice[string]{"bmi_access"},
			Metadata:            datatypes.JSONMap{"save_last_input": true, "save_history": false, "max_input_fields": 10},
		},
		{
			ID:                  "tdee-calculator",
			Name:                "TDEE Calculator",
			Description:         "Total daily energy expenditure calculator",
			Path:                "/projects/tdee-calculator",
			Component:           "TDEECalculator",
			Category:            "health",
			Version:             DefaultProjectVersion,
			Author:              "Formdesk",
			Enabled:             true,
			IsPublic:            true,
			RequiredPermissions: datatypes.JSONSlice[string]{"tdee_access"},
			Metadata:            datatypes.JSONMap{"save_last_input": true, "save_history": false, "max_input_fields": 15},
		},
	}
}

// AdminSeed describes the initial administrator. Seeding is skipped when
// Username or Password is empty.
type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// BootstrapService installs the permission catalog, default projects and the
// first administrator.
type BootstrapService interface {
	Run(ctx context.Context, seedProjects bool, admin AdminSeed) error
}

type bootstrapService struct {
	accounts     repository.AccountRepository
	permissions  repository.PermissionRepository
	projects     repository.ProjectRepository
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewBootstrapService constructs the startup seeder.
func NewBootstrapService(accounts repository.AccountRepository, permissions repository.PermissionRepository, projects repository.ProjectRepository, storeTimeout time.Duration, logger zerolog.Logger) BootstrapService {
	return &bootstrapService{
		accounts:     accounts,
		permissions:  permissions,
		projects:     projects,
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "bootstrap_service").Logger(),
	}
}

// Run is idempotent: existing projects and accounts are left untouched.
func (s *bootstrapService) Run(ctx context.Context, seedProjects bool, admin AdminSeed) error {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.permissions.UpsertCatalog(storeCtx, DefaultPermissions); err != nil {
		return storeFailure("seed permissions", err)
	}
	s.logger.Info().Int("count", len(DefaultPermissions)).Msg("permission catalog seeded")

	if seedProjects {
		for _, project := range DefaultProjects() {
			project := project
			if err := s.projects.Upsert(storeCtx, &project); err != nil {
				return storeFailure("seed project", err)
			}
		}
		s.logger.Info().Msg("default projects seeded")
	}

	return s.seedAdmin(ctx, admin)
}

func (s *bootstrapService) seedAdmin(ctx context.Context, admin AdminSeed) error {
	username := strings.TrimSpace(admin.Username)
	if username == "" || admin.Password == "" {
		return nil
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	_, err := s.accounts.GetByUsername(storeCtx, username)
	cancel()
	if err == nil {
		s.logger.Info().Str("username", username).Msg("admin account already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeFailure("lookup admin account", err)
	}

	email := strings.TrimSpace(admin.Email)
	account, err := createLocalAccount(ctx, s.accounts, s.storeTimeout, models.Account{
		Username:    username,
		DisplayName: "Administrator",
		Email:       normalizeEmail(&email),
		IsActive:    true,
		IsAdmin:     true,
	}, admin.Password)
	if err != nil {
		return err
	}

	grants := make([]string, 0, len(DefaultPermissions))
	for _, permission := range DefaultPermissions {
		grants = append(grants, permission.ID)
	}

	storeCtx, cancel = storeContext(ctx, s.storeTimeout)
	defer cancel()
	if err := s.permissions.SetForAccount(storeCtx, account.ID, grants, &account.ID); err != nil {
		return storeFailure("grant admin permissions", err)
	}

	s.logger.Info().Str("username", username).Msg("admin account created")
	return nil
}

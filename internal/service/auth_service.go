package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/observability"
	"github.com/noah-isme/formdesk-api/internal/repository"
)

// SessionIssuer mints session tokens.
type SessionIssuer interface {
	Issue(account models.Account) (string, error)
	TTL() time.Duration
}

// AuthService implements the sign-in flows and self-service profile operations.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest, meta RequestMeta) (dto.AuthResponse, error)
	Register(ctx context.Context, req dto.RegisterRequest, meta RequestMeta) (dto.AuthResponse, error)
	GoogleLogin(ctx context.Context, req dto.GoogleLoginRequest, meta RequestMeta) (dto.AuthResponse, error)
	GuestLogin(ctx context.Context, req dto.GuestLoginRequest, meta RequestMeta) (dto.AuthResponse, error)
	Logout(ctx context.Context, actor Actor, meta RequestMeta)
	Verify(ctx context.Context, actor Actor, token string) (dto.AuthResponse, error)
	Profile(ctx context.Context, actor Actor) (dto.AccountResponse, error)
	UpdateProfile(ctx context.Context, actor Actor, req dto.ProfileUpdateRequest, meta RequestMeta) (dto.AccountResponse, error)
}

type authService struct {
	credentials  CredentialService
	accounts     repository.AccountRepository
	permissions  PermissionResolver
	sessions     SessionIssuer
	recorder     ActivityRecorder
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	storeTimeout time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewAuthService wires the sign-in flows.
func NewAuthService(credentials CredentialService, accounts repository.AccountRepository, permissions PermissionResolver, sessions SessionIssuer, recorder ActivityRecorder, validate *validator.Validate, storeTimeout time.Duration, logger zerolog.Logger) AuthService {
	return &authService{
		credentials:  credentials,
		accounts:     accounts,
		permissions:  permissions,
		sessions:     sessions,
		recorder:     recorder,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "auth_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/formdesk-api/internal/service/auth"),
		now:          time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest, meta RequestMeta) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailure(err)
	}

	spanCtx, span := s.tracer.Start(ctx, "auth.login", trace.WithAttributes(attribute.String("auth.method", "local")))
	defer span.End()

	username := strings.TrimSpace(req.Username)
	account, err := s.credentials.VerifyLocal(spanCtx, username, req.Password)
	if err != nil {
		span.RecordError(err)
		return dto.AuthResponse{}, s.loginFailure(spanCtx, username, account, err, meta)
	}

	response, err := s.issueSession(spanCtx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	observability.AuthAttempts().WithLabelValues("local", "success").Inc()
	s.recorder.Record(spanCtx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionLogin,
		Details:   map[string]interface{}{"username": account.Username},
		Meta:      meta,
	})
	s.logger.Info().Str("account_id", account.ID).Msg("login succeeded")

	return response, nil
}

func (s *authService) loginFailure(ctx context.Context, username string, account models.Account, err error, meta RequestMeta) error {
	var reason string
	var result error
	switch {
	case errors.Is(err, ErrCredentialNotFound):
		reason = "unknown_username"
		result = newError(KindAuthenticationFailure, "Invalid credentials", err)
	case errors.Is(err, ErrInvalidSecret):
		reason = "invalid_password"
		result = newError(KindAuthenticationFailure, "Invalid credentials", err)
	case errors.Is(err, ErrWrongCredentialKind):
		reason = "wrong_auth_kind"
		result = newError(KindAuthenticationFailure, "Please use the appropriate login method for this account", err)
	case errors.Is(err, ErrCredentialDisabled):
		reason = "account_disabled"
		result = newError(KindAccountDisabled, "Account is disabled", err)
	default:
		observability.AuthAttempts().WithLabelValues("local", "error").Inc()
		return err
	}

	observability.AuthAttempts().WithLabelValues("local", "failure").Inc()
	s.recorder.Record(ctx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionLoginFailed,
		Details:   map[string]interface{}{"username": username, "reason": reason},
		Meta:      meta,
	})
	return result
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest, meta RequestMeta) (dto.AuthResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	account, err := s.credentials.Register(spanCtx, req)
	if err != nil {
		span.RecordError(err)
		observability.AuthAttempts().WithLabelValues("register", "failure").Inc()
		return dto.AuthResponse{}, err
	}

	response, err := s.issueSession(spanCtx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	observability.AuthAttempts().WithLabelValues("register", "success").Inc()
	s.recorder.Record(spanCtx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionRegister,
		Details:   map[string]interface{}{"username": account.Username, "auth_kind": models.AuthKindLocal},
		Meta:      meta,
	})
	s.logger.Info().Str("account_id", account.ID).Msg("account registered")

	return response, nil
}

func (s *authService) GoogleLogin(ctx context.Context, req dto.GoogleLoginRequest, meta RequestMeta) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailure(err)
	}

	spanCtx, span := s.tracer.Start(ctx, "auth.google", trace.WithAttributes(attribute.String("auth.method", "google")))
	defer span.End()

	signIn, err := s.credentials.VerifyExternalIdentity(spanCtx, req.IDToken)
	if err != nil {
		span.RecordError(err)
		observability.AuthAttempts().WithLabelValues("google", "failure").Inc()
		switch {
		case errors.Is(err, ErrInvalidIdentityToken):
			return dto.AuthResponse{}, newError(KindAuthenticationFailure, "Google authentication failed", err)
		case errors.Is(err, ErrCredentialDisabled):
			return dto.AuthResponse{}, newError(KindAccountDisabled, "Account is disabled", err)
		default:
			return dto.AuthResponse{}, err
		}
	}

	account := signIn.Account
	if signIn.Created {
		details := map[string]interface{}{"auth_kind": models.AuthKindGoogle}
		if account.Email != nil {
			details["email"] = *account.Email
		}
		s.recorder.Record(spanCtx, ActivityEntry{AccountID: account.ID, Action: models.ActionRegister, Details: details, Meta: meta})
	}

	response, err := s.issueSession(spanCtx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	observability.AuthAttempts().WithLabelValues("google", "success").Inc()
	s.recorder.Record(spanCtx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionLogin,
		Details:   map[string]interface{}{"auth_kind": models.AuthKindGoogle},
		Meta:      meta,
	})

	return response, nil
}

func (s *authService) GuestLogin(ctx context.Context, req dto.GuestLoginRequest, meta RequestMeta) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailure(err)
	}

	spanCtx, span := s.tracer.Start(ctx, "auth.guest", trace.WithAttributes(attribute.String("auth.method", "guest")))
	defer span.End()

	account, err := s.credentials.IssueGuest(spanCtx, req.Name)
	if err != nil {
		span.RecordError(err)
		observability.AuthAttempts().WithLabelValues("guest", "failure").Inc()
		return dto.AuthResponse{}, err
	}

	response, err := s.issueSession(spanCtx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	observability.AuthAttempts().WithLabelValues("guest", "success").Inc()
	s.recorder.Record(spanCtx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionGuestLogin,
		Details:   map[string]interface{}{"name": account.DisplayName},
		Meta:      meta,
	})

	return response, nil
}

// Logout only records the event. Issued tokens stay valid until they expire.
func (s *authService) Logout(ctx context.Context, actor Actor, meta RequestMeta) {
	if actor.AccountID == "" {
		return
	}
	s.recorder.Record(ctx, ActivityEntry{AccountID: actor.AccountID, Action: models.ActionLogout, Details: map[string]interface{}{}, Meta: meta})
}

func (s *authService) Verify(ctx context.Context, actor Actor, token string) (dto.AuthResponse, error) {
	account, err := s.currentAccount(ctx, actor)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	if !account.IsActive {
		return dto.AuthResponse{}, newError(KindAccountDisabled, "Account is disabled", nil)
	}

	permissions, err := s.permissions.EffectivePermissions(ctx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{
		Token:       token,
		User:        dto.NewAccountResponse(account),
		Permissions: permissions.List(),
	}, nil
}

func (s *authService) Profile(ctx context.Context, actor Actor) (dto.AccountResponse, error) {
	account, err := s.currentAccount(ctx, actor)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	return dto.NewAccountResponse(account), nil
}

func (s *authService) UpdateProfile(ctx context.Context, actor Actor, req dto.ProfileUpdateRequest, meta RequestMeta) (dto.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AccountResponse{}, validationFailure(err)
	}

	account, err := s.currentAccount(ctx, actor)
	if err != nil {
		return dto.AccountResponse{}, err
	}

	changes, err := profileChanges(ctx, s.accounts, s.sanitizer, s.storeTimeout, account.ID, req.Name, req.Email, req.Avatar)
	if err != nil {
		return dto.AccountResponse{}, err
	}
	if changes.IsEmpty() {
		return dto.NewAccountResponse(account), nil
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	updated, err := s.accounts.Update(storeCtx, account.ID, changes)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AccountResponse{}, conflict("Email already exists")
		}
		return dto.AccountResponse{}, storeFailure("update profile", err)
	}

	s.recorder.Record(ctx, ActivityEntry{
		AccountID: account.ID,
		Action:    models.ActionProfileUpdate,
		Details:   map[string]interface{}{"fields": changes.Fields()},
		Meta:      meta,
	})

	return dto.NewAccountResponse(updated), nil
}

func (s *authService) currentAccount(ctx context.Context, actor Actor) (models.Account, error) {
	if actor.AccountID == "" {
		return models.Account{}, newError(KindAuthenticationFailure, "Authentication required", nil)
	}

	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := s.accounts.GetByID(storeCtx, actor.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, notFound("User not found")
		}
		return models.Account{}, storeFailure("load account", err)
	}
	return account, nil
}

func (s *authService) issueSession(ctx context.Context, account models.Account) (dto.AuthResponse, error) {
	permissions, err := s.permissions.EffectivePermissions(ctx, account)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	token, err := s.sessions.Issue(account)
	if err != nil {
		return dto.AuthResponse{}, newError(KindInternal, "failed to issue session", err)
	}

	expiresAt := s.now().UTC().Add(s.sessions.TTL())
	return dto.AuthResponse{
		Token:       token,
		ExpiresAt:   &expiresAt,
		User:        dto.NewAccountResponse(account),
		Permissions: permissions.List(),
	}, nil
}

// profileChanges turns optional profile fields into an account update, rejecting
// an email that already belongs to another account.
func profileChanges(ctx context.Context, accounts repository.AccountRepository, policy *bluemonday.Policy, timeout time.Duration, accountID string, name, email, avatar *string) (repository.AccountChanges, error) {
	changes := repository.AccountChanges{}

	if name != nil {
		clean := sanitizeText(policy, *name)
		if clean == "" {
			return changes, invalidInput("name must not be empty")
		}
		changes.DisplayName = &clean
	}

	if email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*email))
		if normalized != "" {
			storeCtx, cancel := storeContext(ctx, timeout)
			existing, err := accounts.GetByEmail(storeCtx, normalized)
			cancel()
			switch {
			case err == nil && existing.ID != accountID:
				return changes, conflict("Email already exists")
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return changes, storeFailure("lookup account by email", err)
			}
		}
		changes.Email = &normalized
	}

	if avatar != nil {
		trimmed := strings.TrimSpace(*avatar)
		changes.AvatarRef = &trimmed
	}

	return changes, nil
}

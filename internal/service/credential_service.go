package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/formdesk-api/internal/auth"
	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
	"github.com/noah-isme/formdesk-api/internal/repository"
	"github.com/noah-isme/formdesk-api/pkg/googleid"
)

// Prefixes of generated usernames. Registration rejects names using them.
const (
	GuestUsernamePrefix  = "guest_"
	GoogleUsernamePrefix = "google_"

	generatedUsernameAttempts = 3
)

var (
	// ErrCredentialNotFound indicates no account matched the presented handle.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialDisabled indicates the matched account is inactive.
	ErrCredentialDisabled = errors.New("account is disabled")
	// ErrWrongCredentialKind indicates the account cannot sign in with a password.
	ErrWrongCredentialKind = errors.New("account uses a different sign-in method")
	// ErrInvalidSecret indicates the password did not match.
	ErrInvalidSecret = errors.New("invalid secret")
	// ErrInvalidIdentityToken indicates the identity provider token was rejected.
	ErrInvalidIdentityToken = errors.New("invalid identity token")
)

// IdentityVerifier validates identity provider tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (googleid.Identity, error)
}

// ExternalSignIn is the outcome of a successful identity provider sign-in.
type ExternalSignIn struct {
	Account models.Account
	Created bool
}

// CredentialService resolves presented credentials to accounts.
type CredentialService interface {
	VerifyLocal(ctx context.Context, username, secret string) (models.Account, error)
	VerifyExternalIdentity(ctx context.Context, idToken string) (ExternalSignIn, error)
	IssueGuest(ctx context.Context, displayName string) (models.Account, error)
	Register(ctx context.Context, req dto.RegisterRequest) (models.Account, error)
}

type credentialService struct {
	accounts     repository.AccountRepository
	identity     IdentityVerifier
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewCredentialService constructs the credential verifier. identity may be nil
// when Google sign-in is not configured.
func NewCredentialService(accounts repository.AccountRepository, identity IdentityVerifier, validate *validator.Validate, storeTimeout time.Duration, logger zerolog.Logger) CredentialService {
	return &credentialService{
		accounts:     accounts,
		identity:     identity,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		storeTimeout: storeTimeout,
		logger:       logger.With().Str("component", "credential_service").Logger(),
	}
}

// VerifyLocal checks a username and password. When the username matched, the
// account is returned alongside ErrCredentialDisabled, ErrWrongCredentialKind
// and ErrInvalidSecret.
func (s *credentialService) VerifyLocal(ctx context.Context, username, secret string) (models.Account, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := s.accounts.GetByUsername(storeCtx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, ErrCredentialNotFound
		}
		return models.Account{}, storeFailure("lookup account by username", err)
	}

	if !account.IsActive {
		return account, ErrCredentialDisabled
	}
	if !account.HasCredential() {
		return account, ErrWrongCredentialKind
	}
	if !auth.VerifyPassword(secret, *account.CredentialHash) {
		return account, ErrInvalidSecret
	}

	return account, nil
}

// VerifyExternalIdentity validates a Google ID token and resolves it to an
// account: by external id, then by email (linking the identity), otherwise a
// new google account is created.
func (s *credentialService) VerifyExternalIdentity(ctx context.Context, idToken string) (ExternalSignIn, error) {
	if s.identity == nil {
		return ExternalSignIn{}, invalidInput("Google sign-in is not configured")
	}
	if strings.TrimSpace(idToken) == "" {
		return ExternalSignIn{}, invalidInput("Google ID token is required")
	}

	identity, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("identity token rejected")
		return ExternalSignIn{}, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	name := s.cleanName(identity.Name)
	if name == "" {
		name = identity.Email
	}

	account, err := s.lookup(ctx, s.accounts.GetByExternalID, identity.Subject)
	switch {
	case err == nil:
		changes := repository.AccountChanges{}
		if account.DisplayName != name {
			changes.DisplayName = &name
		}
		if identity.Picture != "" && (account.AvatarRef == nil || *account.AvatarRef != identity.Picture) {
			changes.AvatarRef = &identity.Picture
		}
		if !changes.IsEmpty() {
			if account, err = s.update(ctx, account.ID, changes); err != nil {
				return ExternalSignIn{}, err
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		account, err = s.lookup(ctx, s.accounts.GetByEmail, identity.Email)
		switch {
		case err == nil:
			subject := identity.Subject
			if account, err = s.update(ctx, account.ID, repository.AccountChanges{ExternalID: &subject}); err != nil {
				return ExternalSignIn{}, err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			email := identity.Email
			subject := identity.Subject
			candidate := models.Account{
				AuthKind:    models.AuthKindGoogle,
				ExternalID:  &subject,
				Email:       &email,
				DisplayName: name,
				IsActive:    true,
			}
			if identity.Picture != "" {
				picture := identity.Picture
				candidate.AvatarRef = &picture
			}
			account, err = s.createGenerated(ctx, GoogleUsernamePrefix, candidate)
			if err != nil {
				return ExternalSignIn{}, err
			}
			return ExternalSignIn{Account: account, Created: true}, nil
		default:
			return ExternalSignIn{}, err
		}
	default:
		return ExternalSignIn{}, err
	}

	if !account.IsActive {
		return ExternalSignIn{Account: account}, ErrCredentialDisabled
	}
	return ExternalSignIn{Account: account}, nil
}

// IssueGuest creates an anonymous account with no credential and no grants.
func (s *credentialService) IssueGuest(ctx context.Context, displayName string) (models.Account, error) {
	name := s.cleanName(displayName)
	if name == "" {
		return models.Account{}, invalidInput("Guest name is required")
	}

	return s.createGenerated(ctx, GuestUsernamePrefix, models.Account{
		AuthKind:    models.AuthKindGuest,
		DisplayName: name,
		IsActive:    true,
	})
}

// Register creates a local account. Conflicts leave the store untouched.
func (s *credentialService) Register(ctx context.Context, req dto.RegisterRequest) (models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Account{}, validationFailure(err)
	}

	name := s.cleanName(req.Name)
	if name == "" {
		return models.Account{}, invalidInput("name is required")
	}

	return createLocalAccount(ctx, s.accounts, s.storeTimeout, models.Account{
		Username:    strings.TrimSpace(req.Username),
		DisplayName: name,
		Email:       normalizeEmail(req.Email),
		IsActive:    true,
	}, req.Password)
}

// createLocalAccount checks username and email uniqueness, hashes the password
// and stores a local account built from template.
func createLocalAccount(ctx context.Context, accounts repository.AccountRepository, timeout time.Duration, template models.Account, password string) (models.Account, error) {
	if err := validateUsername(template.Username); err != nil {
		return models.Account{}, err
	}
	if len(password) < auth.MinPasswordLength {
		return models.Account{}, invalidInput(fmt.Sprintf("Password must be at least %d characters long", auth.MinPasswordLength))
	}

	storeCtx, cancel := storeContext(ctx, timeout)
	defer cancel()

	if _, err := accounts.GetByUsername(storeCtx, template.Username); err == nil {
		return models.Account{}, conflict("Username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Account{}, storeFailure("lookup account by username", err)
	}

	if template.Email != nil {
		if _, err := accounts.GetByEmail(storeCtx, *template.Email); err == nil {
			return models.Account{}, conflict("Email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, storeFailure("lookup account by email", err)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Account{}, newError(KindInternal, "failed to secure password", err)
	}

	account := template
	account.AuthKind = models.AuthKindLocal
	account.CredentialHash = &hash

	if err := accounts.Create(storeCtx, &account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Account{}, conflict("Username or email already exists")
		}
		return models.Account{}, storeFailure("create account", err)
	}

	return account, nil
}

func (s *credentialService) createGenerated(ctx context.Context, prefix string, template models.Account) (models.Account, error) {
	var lastErr error
	for attempt := 0; attempt < generatedUsernameAttempts; attempt++ {
		account := template
		account.Username = prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

		storeCtx, cancel := storeContext(ctx, s.storeTimeout)
		err := s.accounts.Create(storeCtx, &account)
		cancel()
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Account{}, storeFailure("create account", err)
		}
		lastErr = err
	}

	return models.Account{}, newError(KindConflict, "could not allocate a unique username", lastErr)
}

func (s *credentialService) lookup(ctx context.Context, find func(context.Context, string) (models.Account, error), key string) (models.Account, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := find(storeCtx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, err
		}
		return models.Account{}, storeFailure("lookup account", err)
	}
	return account, nil
}

func (s *credentialService) update(ctx context.Context, id string, changes repository.AccountChanges) (models.Account, error) {
	storeCtx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	account, err := s.accounts.Update(storeCtx, id, changes)
	if err != nil {
		return models.Account{}, storeFailure("update account", err)
	}
	return account, nil
}

func (s *credentialService) cleanName(value string) string {
	return sanitizeText(s.sanitizer, value)
}

func sanitizeText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(value))))
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))
	if normalized == "" {
		return nil
	}
	return &normalized
}

func validateUsername(username string) error {
	if len(username) < 3 {
		return invalidInput("username must be at least 3 characters")
	}
	lower := strings.ToLower(username)
	if strings.HasPrefix(lower, GuestUsernamePrefix) || strings.HasPrefix(lower, GoogleUsernamePrefix) {
		return invalidInput("username uses a reserved prefix")
	}
	for _, r := range username {
		if !(r == '_' || r == '-' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return invalidInput("username may only contain letters, digits, '.', '-' and '_'")
		}
	}
	return nil
}

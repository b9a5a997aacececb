package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/observability"
	"token-auth-service/internal/repository"
	"token-auth-service/internal/security"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// a login response never confirms account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers missing, unknown and revoked tokens alike.
	ErrUnauthenticated = errors.New("unauthenticated")
)

const tokenValidationNamespace = "auth.token.validation"

type LoginResult struct {
	Token  *domain.Token
	Secret string
}

type AuthService struct {
	users    repository.UserRepository
	tokens   repository.TokenRepository
	hasher   PasswordHasher
	mailer   Mailer
	negCache NegativeLookupCacheStore
	negTTL   time.Duration
	pepper   string
	pwLength int
	logger   *slog.Logger
}

type AuthServiceParams struct {
	Users               repository.UserRepository
	Tokens              repository.TokenRepository
	Hasher              PasswordHasher
	Mailer              Mailer
	NegativeCache       NegativeLookupCacheStore
	NegativeCacheTTL    time.Duration
	TokenPepper         string
	ResetPasswordLength int
	Logger              *slog.Logger
}

func NewAuthService(p AuthServiceParams) *AuthService {
	if p.NegativeCache == nil {
		p.NegativeCache = NewNoopNegativeLookupCacheStore()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &AuthService{
		users:    p.Users,
		tokens:   p.Tokens,
		hasher:   p.Hasher,
		mailer:   p.Mailer,
		negCache: p.NegativeCache,
		negTTL:   p.NegativeCacheTTL,
		pepper:   p.TokenPepper,
		pwLength: p.ResetPasswordLength,
		logger:   p.Logger,
	}
}

// Login verifies the credentials and issues a brand-new token. Every call
// creates an independent session; earlier tokens stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthLogin("error")
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		observability.RecordAuthLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	token, secret, err := s.tokens.Create(user.ID)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, fmt.Errorf("issue token: %w", err)
	}
	// A cached miss for this hash would shadow the fresh token.
	if err := s.negCache.InvalidateNamespace(ctx, tokenValidationNamespace); err != nil {
		s.logger.WarnContext(ctx, "negative cache invalidate failed", "error", err)
	}
	observability.RecordAuthLogin("success")
	return &LoginResult{Token: token, Secret: secret}, nil
}

// Validate resolves a presented secret to its owner and token record.
// Unknown and revoked tokens are indistinguishable to the caller.
func (s *AuthService) Validate(ctx context.Context, secret string) (*domain.User, *domain.Token, error) {
	if secret == "" {
		observability.RecordTokenValidation("missing")
		return nil, nil, ErrUnauthenticated
	}
	hash := security.HashTokenSecret(secret, s.pepper)

	if hit, err := s.negCache.Get(ctx, tokenValidationNamespace, hash); err != nil {
		s.logger.WarnContext(ctx, "negative cache get failed", "error", err)
	} else if hit {
		observability.RecordTokenValidation("cached_miss")
		return nil, nil, ErrUnauthenticated
	}

	token, err := s.tokens.FindActiveByHash(hash)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenNotFound):
			s.cacheMiss(ctx, hash)
			observability.RecordTokenValidation("not_found")
			return nil, nil, ErrUnauthenticated
		case errors.Is(err, repository.ErrTokenRevoked):
			s.cacheMiss(ctx, hash)
			observability.RecordTokenValidation("revoked")
			return nil, nil, ErrUnauthenticated
		default:
			observability.RecordTokenValidation("error")
			return nil, nil, fmt.Errorf("validate token: %w", err)
		}
	}

	user, err := s.users.FindByID(token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordTokenValidation("orphaned")
			return nil, nil, ErrUnauthenticated
		}
		observability.RecordTokenValidation("error")
		return nil, nil, fmt.Errorf("resolve token owner: %w", err)
	}

	if err := s.tokens.TouchLastUsed(token.ID); err != nil {
		s.logger.WarnContext(ctx, "touch last used failed", "token_id", token.ID, "error", err)
	}
	observability.RecordTokenValidation("success")
	return user, token, nil
}

// Logout revokes exactly the presented session.
func (s *AuthService) Logout(ctx context.Context, secret string) error {
	_, token, err := s.Validate(ctx, secret)
	if err != nil {
		observability.RecordAuthLogout("single", "unauthenticated")
		return err
	}
	if _, err := s.tokens.RevokeByID(token.ID); err != nil {
		observability.RecordAuthLogout("single", "error")
		return fmt.Errorf("revoke token: %w", err)
	}
	observability.RecordAuthLogout("single", "success")
	return nil
}

// LogoutOther revokes every other session of the same user; the presented
// token stays valid.
func (s *AuthService) LogoutOther(ctx context.Context, secret string) error {
	user, token, err := s.Validate(ctx, secret)
	if err != nil {
		observability.RecordAuthLogout("other", "unauthenticated")
		return err
	}
	if _, err := s.tokens.RevokeOthersByUser(user.ID, token.ID); err != nil {
		observability.RecordAuthLogout("other", "error")
		return fmt.Errorf("revoke other tokens: %w", err)
	}
	observability.RecordAuthLogout("other", "success")
	return nil
}

// LogoutAll revokes every session of the user, the presented one included.
func (s *AuthService) LogoutAll(ctx context.Context, secret string) error {
	user, _, err := s.Validate(ctx, secret)
	if err != nil {
		observability.RecordAuthLogout("all", "unauthenticated")
		return err
	}
	if _, err := s.tokens.RevokeAllByUser(user.ID); err != nil {
		observability.RecordAuthLogout("all", "error")
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	observability.RecordAuthLogout("all", "success")
	return nil
}

// ListTokens returns the caller's full token history in creation order,
// revoked entries included.
func (s *AuthService) ListTokens(ctx context.Context, secret string) ([]domain.Token, error) {
	user, _, err := s.Validate(ctx, secret)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokens.ListByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// ForgotPassword replaces the user's credential with a generated password,
// revokes every live session and mails the new password. Unknown emails are
// a silent no-op so the response never confirms account existence.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordPasswordReset("unknown_email")
			return nil
		}
		observability.RecordPasswordReset("error")
		return fmt.Errorf("forgot password lookup: %w", err)
	}

	password, err := security.NewRandomPassword(s.pwLength)
	if err != nil {
		observability.RecordPasswordReset("error")
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		observability.RecordPasswordReset("error")
		return err
	}
	if err := s.users.UpdatePasswordHash(user.ID, hash); err != nil {
		observability.RecordPasswordReset("error")
		return fmt.Errorf("store new password: %w", err)
	}
	// The old credential may be compromised; tokens minted with it go too.
	if _, err := s.tokens.RevokeAllByUser(user.ID); err != nil {
		observability.RecordPasswordReset("error")
		return fmt.Errorf("revoke sessions on reset: %w", err)
	}

	if err := s.mailer.SendNewPassword(ctx, user.Email, user.Username, password); err != nil {
		s.logger.ErrorContext(ctx, "password reset mail failed", "user_id", user.ID, "error", err)
		observability.RecordPasswordReset("mailer_error")
		return nil
	}
	observability.RecordPasswordReset("success")
	return nil
}

// Register creates a principal. Used by seeding and tests; the HTTP surface
// does not expose it.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

func (s *AuthService) cacheMiss(ctx context.Context, hash string) {
	if err := s.negCache.Set(ctx, tokenValidationNamespace, hash, s.negTTL); err != nil {
		s.logger.WarnContext(ctx, "negative cache set failed", "error", err)
	}
}

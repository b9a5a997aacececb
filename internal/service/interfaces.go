package service

import (
	"context"

	"token-auth-service/internal/domain"
)

// AuthServiceInterface is what the HTTP layer programs against, so handler
// and middleware tests can substitute a double.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Validate(ctx context.Context, secret string) (*domain.User, *domain.Token, error)
	Logout(ctx context.Context, secret string) error
	LogoutOther(ctx context.Context, secret string) error
	LogoutAll(ctx context.Context, secret string) error
	ListTokens(ctx context.Context, secret string) ([]domain.Token, error)
	ForgotPassword(ctx context.Context, email string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// Mailer delivers the regenerated password out of band. Implementations must
// not be called while any store transaction is open.
type Mailer interface {
	SendNewPassword(ctx context.Context, to, username, password string) error
}

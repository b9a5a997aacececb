package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/observability"
	"token-auth-service/internal/security"

	"gorm.io/gorm"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenRevoked  = errors.New("token revoked")
)

// secretRetries bounds the collision retry loop in Create. A collision on a
// 256-bit random secret means the unique index tripped on somebody's very bad
// day; more than a few retries indicates a broken entropy source.
const secretRetries = 3

type TokenRepository interface {
	Create(userID uint) (*domain.Token, string, error)
	FindActiveByHash(hash string) (*domain.Token, error)
	ListByUserID(userID uint) ([]domain.Token, error)
	RevokeByID(tokenID uint) (bool, error)
	RevokeOthersByUser(userID, keepTokenID uint) (int64, error)
	RevokeAllByUser(userID uint) (int64, error)
	TouchLastUsed(tokenID uint) error
}

type GormTokenRepository struct {
	db     *gorm.DB
	pepper string
}

func NewTokenRepository(db *gorm.DB, pepper string) TokenRepository {
	return &GormTokenRepository{db: db, pepper: pepper}
}

// Create issues a new non-revoked token for the user and returns the record
// together with the opaque secret. Only the peppered hash is persisted, so
// the secret is handed out exactly once.
func (r *GormTokenRepository) Create(userID uint) (*domain.Token, string, error) {
	for attempt := 0; attempt < secretRetries; attempt++ {
		secret, err := security.NewTokenSecret()
		if err != nil {
			observability.RecordRepositoryOperation(context.Background(), "token", "create", "error")
			return nil, "", err
		}
		token := &domain.Token{
			UserID:    userID,
			TokenHash: security.HashTokenSecret(secret, r.pepper),
			Type:      domain.TokenTypeAPI,
		}
		err = r.db.Create(token).Error
		if err == nil {
			observability.RecordRepositoryOperation(context.Background(), "token", "create", "success")
			return token, secret, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "token", "create", "collision")
			continue
		}
		observability.RecordRepositoryOperation(context.Background(), "token", "create", "error")
		return nil, "", fmt.Errorf("create token: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "create", "error")
	return nil, "", fmt.Errorf("create token: secret collision retries exhausted")
}

// FindActiveByHash distinguishes absent from revoked so the service can
// collapse both into one externally visible failure.
func (r *GormTokenRepository) FindActiveByHash(hash string) (*domain.Token, error) {
	var t domain.Token
	err := r.db.Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "token", "find_active_by_hash", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "token", "find_active_by_hash", "error")
		return nil, err
	}
	if t.IsRevoked {
		observability.RecordRepositoryOperation(context.Background(), "token", "find_active_by_hash", "revoked")
		return nil, ErrTokenRevoked
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "find_active_by_hash", "success")
	return &t, nil
}

// ListByUserID returns every token the user ever held, revoked included,
// in creation order.
func (r *GormTokenRepository) ListByUserID(userID uint) ([]domain.Token, error) {
	var tokens []domain.Token
	err := r.db.Where("user_id = ?", userID).
		Order("id ASC").
		Find(&tokens).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user_id", "error")
		return tokens, err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user_id", "success")
	return tokens, nil
}

// RevokeByID sets is_revoked once. Revoking an already revoked token is a
// no-op reporting changed=false; a missing token is a contract violation.
func (r *GormTokenRepository) RevokeByID(tokenID uint) (bool, error) {
	var t domain.Token
	if err := r.db.First(&t, tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "token", "revoke_by_id", "not_found")
			return false, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "token", "revoke_by_id", "error")
		return false, err
	}
	if t.IsRevoked {
		observability.RecordRepositoryOperation(context.Background(), "token", "revoke_by_id", "success")
		return false, nil
	}
	res := r.db.Model(&domain.Token{}).
		Where("id = ? AND is_revoked = ?", tokenID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "revoke_by_id", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "revoke_by_id", "success")
	return res.RowsAffected > 0, nil
}

// RevokeOthersByUser revokes every active token of the user except keepTokenID.
// A single UPDATE, so the active set is revoked as one consistent snapshot.
func (r *GormTokenRepository) RevokeOthersByUser(userID, keepTokenID uint) (int64, error) {
	res := r.db.Model(&domain.Token{}).
		Where("user_id = ? AND id <> ? AND is_revoked = ?", userID, keepTokenID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "revoke_others_by_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "revoke_others_by_user", "success")
	return res.RowsAffected, nil
}

func (r *GormTokenRepository) RevokeAllByUser(userID uint) (int64, error) {
	res := r.db.Model(&domain.Token{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "revoke_all_by_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "revoke_all_by_user", "success")
	return res.RowsAffected, nil
}

func (r *GormTokenRepository) TouchLastUsed(tokenID uint) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.Token{}).
		Where("id = ?", tokenID).
		Update("last_used_at", now).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "touch_last_used", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "touch_last_used", "success")
	return nil
}

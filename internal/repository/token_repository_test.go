package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestTokenRepositoryCreateIssuesUniqueSecrets(t *testing.T) {
	repo := newTokenRepoForTest(t)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		token, secret, err := repo.Create(1)
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		if token.IsRevoked {
			t.Fatal("new token must not be revoked")
		}
		if token.Type != domain.TokenTypeAPI {
			t.Fatalf("unexpected token type %q", token.Type)
		}
		if seen[secret] {
			t.Fatalf("secret reuse at create #%d", i)
		}
		seen[secret] = true
	}
}

func TestTokenRepositoryFindActiveByHash(t *testing.T) {
	repo := newTokenRepoForTest(t)

	token, secret, err := repo.Create(7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	hash := security.HashTokenSecret(secret, testPepper)

	found, err := repo.FindActiveByHash(hash)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if found.ID != token.ID || found.UserID != 7 {
		t.Fatalf("unexpected token: %+v", found)
	}

	if _, err := repo.FindActiveByHash(security.HashTokenSecret("unknown", testPepper)); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if _, err := repo.RevokeByID(token.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := repo.FindActiveByHash(hash); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestTokenRepositoryRevokeByIDIsIdempotent(t *testing.T) {
	repo := newTokenRepoForTest(t)

	token, _, err := repo.Create(1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := repo.RevokeByID(token.ID)
	if err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true on first revoke")
	}

	changed, err = repo.RevokeByID(token.ID)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if changed {
		t.Fatal("expected changed=false on already revoked token")
	}

	if _, err := repo.RevokeByID(9999); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for missing token, got %v", err)
	}
}

func TestTokenRepositoryRevokeOthersKeepsCurrent(t *testing.T) {
	repo := newTokenRepoForTest(t)

	a, _, _ := repo.Create(1)
	b, _, _ := repo.Create(1)
	c, _, _ := repo.Create(1)
	other, _, _ := repo.Create(2)

	count, err := repo.RevokeOthersByUser(1, c.ID)
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked, got %d", count)
	}

	tokens, err := repo.ListByUserID(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, tok := range tokens {
		wantRevoked := tok.ID == a.ID || tok.ID == b.ID
		if tok.IsRevoked != wantRevoked {
			t.Fatalf("token %d revoked=%v want %v", tok.ID, tok.IsRevoked, wantRevoked)
		}
	}

	otherTokens, err := repo.ListByUserID(2)
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(otherTokens) != 1 || otherTokens[0].ID != other.ID || otherTokens[0].IsRevoked {
		t.Fatalf("other user's token must be untouched: %+v", otherTokens)
	}
}

func TestTokenRepositoryRevokeAllIncludesCurrent(t *testing.T) {
	repo := newTokenRepoForTest(t)

	for i := 0; i < 3; i++ {
		if _, _, err := repo.Create(1); err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
	}

	count, err := repo.RevokeAllByUser(1)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 revoked, got %d", count)
	}

	tokens, err := repo.ListByUserID(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, tok := range tokens {
		if !tok.IsRevoked {
			t.Fatalf("token %d still active after revoke all", tok.ID)
		}
	}

	count, err = repo.RevokeAllByUser(1)
	if err != nil {
		t.Fatalf("second revoke all: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on second revoke all, got %d", count)
	}
}

func TestTokenRepositoryListByUserIDOrderedIncludesRevoked(t *testing.T) {
	repo := newTokenRepoForTest(t)

	var ids []uint
	for i := 0; i < 4; i++ {
		tok, _, err := repo.Create(1)
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		ids = append(ids, tok.ID)
	}
	if _, err := repo.RevokeByID(ids[1]); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	tokens, err := repo.ListByUserID(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens incl. revoked, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok.ID != ids[i] {
			t.Fatalf("expected creation order, got %d at position %d", tok.ID, i)
		}
	}
	if !tokens[1].IsRevoked {
		t.Fatal("expected second token to carry revoked flag")
	}
}

func TestTokenRepositoryTouchLastUsed(t *testing.T) {
	repo := newTokenRepoForTest(t)

	tok, _, err := repo.Create(1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tok.LastUsedAt != nil {
		t.Fatal("fresh token must not have last_used_at")
	}
	if err := repo.TouchLastUsed(tok.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	tokens, err := repo.ListByUserID(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tokens[0].LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}
}

const testPepper = "test-pepper"

func newTokenRepoForTest(t *testing.T) TokenRepository {
	t.Helper()
	return NewTokenRepository(newDBForTest(t), testPepper)
}

func newDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

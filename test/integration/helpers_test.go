package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/http/handler"
	"token-auth-service/internal/http/router"
	"token-auth-service/internal/repository"
	"token-auth-service/internal/security"
	"token-auth-service/internal/service"
)

type capturedMail struct {
	to       string
	username string
	password string
}

type capturingMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *capturingMailer) SendNewPassword(_ context.Context, to, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{to: to, username: username, password: password})
	return nil
}

func (m *capturingMailer) last(t *testing.T) capturedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a mail to have been sent")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	baseURL string
	client  *http.Client
	svc     *service.AuthService
	mailer  *capturingMailer
}

func newAuthTestServer(t *testing.T, negCache service.NegativeLookupCacheStore) *testEnv {
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
	// Shared-cache sqlite rejects concurrent writers; one connection
	// serializes them.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	mailer := &capturingMailer{}
	if negCache == nil {
		negCache = service.NewInMemoryNegativeLookupCacheStore()
	}
	svc := service.NewAuthService(service.AuthServiceParams{
		Users:               repository.NewUserRepository(db),
		Tokens:              repository.NewTokenRepository(db, "integration-pepper"),
		Hasher:              security.NewBcryptHasher(4),
		Mailer:              mailer,
		NegativeCache:       negCache,
		NegativeCacheTTL:    time.Minute,
		TokenPepper:         "integration-pepper",
		ResetPasswordLength: 16,
	})

	mux := router.NewRouter(router.Dependencies{
		AuthHandler: handler.NewAuthHandler(svc, nil),
		AuthService: svc,
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		baseURL: server.URL,
		client:  server.Client(),
		svc:     svc,
		mailer:  mailer,
	}
}

func (e *testEnv) register(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), username, email, password)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}
	return user
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var decoded map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", string(data), err)
		}
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := e.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", status, body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("login: unexpected payload %v", body)
	}
	if data["type"] != "bearer" {
		t.Fatalf("login: expected bearer type, got %v", data["type"])
	}
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("login: missing token in %v", body)
	}
	return token
}

func message(body map[string]any) string {
	msg, _ := body["message"].(string)
	return msg
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/http/middleware"
	"token-auth-service/internal/service"
)

type fakeAuthService struct {
	loginResult *service.LoginResult
	loginErr    error
	tokens      []domain.Token
	err         error

	logoutCalls      int
	logoutOtherCalls int
	logoutAllCalls   int
	forgotEmail      string
}

func (f *fakeAuthService) Login(context.Context, string, string) (*service.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeAuthService) Validate(context.Context, string) (*domain.User, *domain.Token, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeAuthService) Logout(context.Context, string) error {
	f.logoutCalls++
	return f.err
}

func (f *fakeAuthService) LogoutOther(context.Context, string) error {
	f.logoutOtherCalls++
	return f.err
}

func (f *fakeAuthService) LogoutAll(context.Context, string) error {
	f.logoutAllCalls++
	return f.err
}

func (f *fakeAuthService) ListTokens(context.Context, string) ([]domain.Token, error) {
	return f.tokens, f.err
}

func (f *fakeAuthService) ForgotPassword(_ context.Context, email string) error {
	f.forgotEmail = email
	return f.err
}

func TestLoginReturnsBearerEnvelope(t *testing.T) {
	fake := &fakeAuthService{
		loginResult: &service.LoginResult{
			Token:  &domain.Token{ID: 7, UserID: 3},
			Secret: "opaque-secret",
		},
	}
	h := NewAuthHandler(fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"email@mail.com","password":"password"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.Type != "bearer" {
		t.Fatalf("expected type bearer, got %q", body.Data.Type)
	}
	if body.Data.Token != "opaque-secret" {
		t.Fatalf("unexpected token %q", body.Data.Token)
	}
}

func TestLoginRejectionsShareOneBody(t *testing.T) {
	cases := map[string]struct {
		payload string
		fake    *fakeAuthService
	}{
		"bad credentials": {
			payload: `{"email":"email@mail.com","password":"wrong"}`,
			fake:    &fakeAuthService{loginErr: service.ErrInvalidCredentials},
		},
		"malformed body": {
			payload: `{"email":`,
			fake:    &fakeAuthService{},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewAuthHandler(tc.fake, nil)
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.payload))
			rr := httptest.NewRecorder()
			h.Login(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["message"] != "Invalid credentials." {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestLoginInternalErrorReturns500(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{loginErr: errors.New("db down")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestProfileReturnsAuthenticatedUser(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), &middleware.Principal{
		User:  &domain.User{ID: 42, Username: "sample", Email: "email@mail.com"},
		Token: &domain.Token{ID: 1, UserID: 42},
	}))
	rr := httptest.NewRecorder()
	h.Profile(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.ID != 42 || body.Data.Email != "email@mail.com" {
		t.Fatalf("unexpected profile: %+v", body.Data)
	}
}

func TestTokensRendersRevokedAsIntFlag(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{
		tokens: []domain.Token{
			{ID: 1, UserID: 9, Type: domain.TokenTypeAPI, IsRevoked: true},
			{ID: 2, UserID: 9, Type: domain.TokenTypeAPI, IsRevoked: false},
		},
	}, nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/tokens", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.Tokens(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data []struct {
			ID        uint   `json:"id"`
			Type      string `json:"type"`
			IsRevoked int    `json:"is_revoked"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(body.Data))
	}
	if body.Data[0].IsRevoked != 1 || body.Data[1].IsRevoked != 0 {
		t.Fatalf("unexpected revocation flags: %+v", body.Data)
	}
	if body.Data[0].Type != "api_token" {
		t.Fatalf("unexpected token type %q", body.Data[0].Type)
	}
}

func TestLogoutVariantsShareSuccessBody(t *testing.T) {
	fake := &fakeAuthService{}
	h := NewAuthHandler(fake, nil)

	calls := map[string]http.HandlerFunc{
		"/auth/logout":      h.Logout,
		"/auth/logoutOther": h.LogoutOther,
		"/auth/logoutAll":   h.LogoutAll,
	}
	for path, fn := range calls {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		fn(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		if body["message"] != "Logout successfully" {
			t.Fatalf("%s: unexpected body: %v", path, body)
		}
	}
	if fake.logoutCalls != 1 || fake.logoutOtherCalls != 1 || fake.logoutAllCalls != 1 {
		t.Fatalf("expected one call per variant, got %+v", fake)
	}
}

func TestLogoutWithInvalidSessionReturnsFixed401(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{err: service.ErrUnauthenticated}, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "Invalid API token." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestForgotPasswordAlwaysAnswersWithFixedMessage(t *testing.T) {
	fake := &fakeAuthService{}
	h := NewAuthHandler(fake, nil)

	for _, payload := range []string{
		`{"email":"email@mail.com"}`,
		`{"email":`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/forgotPassword", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		h.ForgotPassword(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["message"] != "New password will been send to your Email." {
			t.Fatalf("unexpected body: %v", body)
		}
	}
	if fake.forgotEmail != "email@mail.com" {
		t.Fatalf("expected service call for well-formed body, got %q", fake.forgotEmail)
	}
}

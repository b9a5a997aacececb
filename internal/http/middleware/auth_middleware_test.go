package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/service"
)

type stubAuthService struct {
	user  *domain.User
	token *domain.Token
	err   error
}

func (s *stubAuthService) Login(context.Context, string, string) (*service.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAuthService) Validate(context.Context, string) (*domain.User, *domain.Token, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.user, s.token, nil
}

func (s *stubAuthService) Logout(context.Context, string) error      { return s.err }
func (s *stubAuthService) LogoutOther(context.Context, string) error { return s.err }
func (s *stubAuthService) LogoutAll(context.Context, string) error   { return s.err }

func (s *stubAuthService) ListTokens(context.Context, string) ([]domain.Token, error) {
	return nil, s.err
}

func (s *stubAuthService) ForgotPassword(context.Context, string) error { return s.err }

func TestAuthMiddlewareMissingTokenReturnsFixedBody(t *testing.T) {
	h := AuthMiddleware(&stubAuthService{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "Invalid API token." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAuthMiddlewareInvalidTokenReturns401(t *testing.T) {
	h := AuthMiddleware(&stubAuthService{err: service.ErrUnauthenticated})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}
}

func TestAuthMiddlewareAttachesPrincipal(t *testing.T) {
	stub := &stubAuthService{
		user:  &domain.User{ID: 42, Username: "sample", Email: "email@mail.com"},
		token: &domain.Token{ID: 7, UserID: 42},
	}
	var got *Principal
	h := AuthMiddleware(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("expected principal in context")
		}
		got = p
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer some-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for valid token, got %d", rr.Code)
	}
	if got.User.ID != 42 || got.Token.ID != 7 {
		t.Fatalf("unexpected principal: %+v", got)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"Bearerabc":   "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := BearerToken(req); got != want {
			t.Fatalf("BearerToken(%q)=%q want %q", header, got, want)
		}
	}
}

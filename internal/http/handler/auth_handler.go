package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/http/middleware"
	"token-auth-service/internal/http/response"
	"token-auth-service/internal/observability"
	"token-auth-service/internal/service"
)

type AuthHandler struct {
	auth   service.AuthServiceInterface
	logger *slog.Logger
}

func NewAuthHandler(auth service.AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Message(w, http.StatusUnauthorized, response.MsgInvalidCredentials)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "auth.login.denied")
			response.Message(w, http.StatusUnauthorized, response.MsgInvalidCredentials)
			return
		}
		h.serverError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", "user_id", res.Token.UserID, "token_id", res.Token.ID)
	response.Data(w, http.StatusOK, loginResponse{Type: "bearer", Token: res.Secret})
}

type profileView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Message(w, http.StatusUnauthorized, response.MsgInvalidToken)
		return
	}
	response.Data(w, http.StatusOK, profileView{
		ID:       p.User.ID,
		Username: p.User.Username,
		Email:    p.User.Email,
	})
}

// tokenView serializes is_revoked as a 0/1 flag, matching the persistence
// layer's boolean representation on the wire.
type tokenView struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	Type      string `json:"type"`
	IsRevoked int    `json:"is_revoked"`
}

func (h *AuthHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	secret := middleware.BearerToken(r)
	tokens, err := h.auth.ListTokens(r.Context(), secret)
	if err != nil {
		h.authError(w, r, err)
		return
	}
	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, newTokenView(t))
	}
	response.Data(w, http.StatusOK, views)
}

func newTokenView(t domain.Token) tokenView {
	revoked := 0
	if t.IsRevoked {
		revoked = 1
	}
	return tokenView{ID: t.ID, UserID: t.UserID, Type: t.Type, IsRevoked: revoked}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, "auth.logout", h.auth.Logout)
}

func (h *AuthHandler) LogoutOther(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, "auth.logout_other", h.auth.LogoutOther)
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, "auth.logout_all", h.auth.LogoutAll)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request, event string, revoke func(context.Context, string) error) {
	secret := middleware.BearerToken(r)
	if err := revoke(r.Context(), secret); err != nil {
		h.authError(w, r, err)
		return
	}
	observability.Audit(r, event)
	response.Message(w, http.StatusOK, response.MsgLogoutSuccess)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Same fixed success; a malformed body leaks nothing either.
		response.Message(w, http.StatusOK, response.MsgPasswordSent)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.serverError(w, r, err)
		return
	}
	observability.Audit(r, "auth.forgot_password")
	response.Message(w, http.StatusOK, response.MsgPasswordSent)
}

func (h *AuthHandler) authError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrUnauthenticated) {
		response.Message(w, http.StatusUnauthorized, response.MsgInvalidToken)
		return
	}
	h.serverError(w, r, err)
}

func (h *AuthHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"error", err,
	)
	response.Message(w, http.StatusInternalServerError, response.MsgServerError)
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"token-auth-service/internal/domain"
	"token-auth-service/internal/http/response"
	"token-auth-service/internal/service"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the resolved caller, threaded through the request context
// instead of any ambient global.
type Principal struct {
	User  *domain.User
	Token *domain.Token
}

// AuthMiddleware gates protected routes on a valid bearer token. Every
// failure answers the same fixed 401 body.
func AuthMiddleware(auth service.AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := BearerToken(r)
			if secret == "" {
				response.Message(w, http.StatusUnauthorized, response.MsgInvalidToken)
				return
			}
			user, token, err := auth.Validate(r.Context(), secret)
			if err != nil {
				response.Message(w, http.StatusUnauthorized, response.MsgInvalidToken)
				return
			}
			ctx := ContextWithPrincipal(r.Context(), &Principal{User: user, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the secret from the Authorization header; empty when
// the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// ContextWithPrincipal attaches a resolved caller, as AuthMiddleware does.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

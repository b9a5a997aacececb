package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"token-auth-service/internal/health"
	"token-auth-service/internal/http/handler"
	"token-auth-service/internal/http/middleware"
	"token-auth-service/internal/http/response"
	"token-auth-service/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	AuthService    service.AuthServiceInterface
	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.Data(w, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.Data(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Data(w, http.StatusServiceUnavailable, map[string]any{"status": "unready", "checks": results})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", dep.AuthHandler.Login)
		r.Post("/forgotPassword", dep.AuthHandler.ForgotPassword)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(dep.AuthService))
			r.Get("/profile", dep.AuthHandler.Profile)
			r.Get("/tokens", dep.AuthHandler.Tokens)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.Post("/logoutOther", dep.AuthHandler.LogoutOther)
			r.Post("/logoutAll", dep.AuthHandler.LogoutAll)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

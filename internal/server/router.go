package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vaughan-dsouza/taskboard/internal/handlers"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/middleware"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
)

// NewRouter wires every route under /api/v1.
func NewRouter(users *service.UserService, carrier session.Carrier, allowedOrigins []string, logger logging.Logger) http.Handler {
	h := handlers.NewHandler(users, carrier, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("ok"))
		})

		// Public
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Get("/logout", h.Auth.Logout)
		r.Get("/login-status", h.Auth.LoginStatus)
		r.Post("/verify-user/{token}", h.Auth.VerifyUser)
		r.Post("/forgot-password", h.Auth.ForgotPassword)
		r.Post("/reset-password/{token}", h.Auth.ResetPassword)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(users, carrier, logger))

			r.Get("/user", h.Auth.GetUser)
			r.Patch("/user", h.Auth.UpdateUser)
			r.Post("/verify-email", h.Auth.VerifyEmail)
			r.Patch("/change-password", h.Auth.ChangePassword)

			// user management needs a confirmed email on top of the role
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireVerified(logger))

				r.With(middleware.RequireRole(logger, models.RoleCreator, models.RoleAdmin)).
					Get("/admin/users", h.Admin.ListUsers)
				r.With(middleware.RequireRole(logger, models.RoleAdmin)).
					Delete("/admin/users/{id}", h.Admin.DeleteUser)
			})
		})
	})

	return r
}

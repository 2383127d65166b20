package middleware

import (
	"context"
	"net/http"

	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/session"
	"github.com/vaughan-dsouza/taskboard/internal/utils"
)

type ctxKey string

const ctxUserKey ctxKey = "user"

// Authenticator resolves a session token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Authenticate rejects requests without a valid session and attaches the
// resolved user to the request context.
func Authenticate(auth Authenticator, carrier session.Carrier, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := carrier.Extract(r)
			if err != nil {
				utils.WriteError(w, r, logger, apperr.Unauthorized("not authorized, please login"))
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				utils.WriteError(w, r, logger, err)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx, logger).With("user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// UserFromContext returns the user attached by Authenticate.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxUserKey).(*models.User)
	return u, ok && u != nil
}

// RequireRole admits only users whose role is in allowed.
func RequireRole(logger logging.Logger, allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				utils.WriteError(w, r, logger, apperr.Unauthorized("not authorized, please login"))
				return
			}
			if !u.Role.In(allowed...) {
				utils.WriteError(w, r, logger, apperr.Forbidden("not authorized for this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified admits only users who confirmed their email address.
func RequireVerified(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				utils.WriteError(w, r, logger, apperr.Unauthorized("not authorized, please login"))
				return
			}
			if !u.IsVerified {
				utils.WriteError(w, r, logger, apperr.Forbidden("please verify your email address"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

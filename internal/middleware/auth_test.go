package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/session"
)

type fakeAuth struct {
	users map[string]*models.User
	calls int
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	f.calls++
	if token == "orphan" {
		return nil, apperr.NotFound("user not found")
	}
	u, ok := f.users[token]
	if !ok {
		return nil, apperr.Unauthorized("not authorized, token failed")
	}
	return u, nil
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(u.Name))
	})
}

func TestAuthenticate_Bearer(t *testing.T) {
	auth := &fakeAuth{users: map[string]*models.User{
		"good": {ID: uuid.New(), Name: "ada", Role: models.RoleStandard},
	}}
	h := Authenticate(auth, session.BearerCarrier{}, logging.Discard())(okHandler(t))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"deleted user", "Bearer orphan", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ada", rec.Body.String())
			}
		})
	}
}

func TestAuthenticate_Cookie(t *testing.T) {
	auth := &fakeAuth{users: map[string]*models.User{
		"good": {ID: uuid.New(), Name: "ada"},
	}}
	h := Authenticate(auth, session.CookieCarrier{}, logging.Discard())(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a bearer header is not a credential in cookie mode
	req = httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_MissingTokenSkipsLookup(t *testing.T) {
	auth := &fakeAuth{}
	h := Authenticate(auth, session.BearerCarrier{}, logging.Discard())(okHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, auth.calls)
}

func serveAs(h http.Handler, u *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	if u != nil {
		req = req.WithContext(WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(logging.Discard(), models.RoleCreator, models.RoleAdmin)(next)

	assert.Equal(t, http.StatusOK, serveAs(h, &models.User{Role: models.RoleAdmin}).Code)
	assert.Equal(t, http.StatusOK, serveAs(h, &models.User{Role: models.RoleCreator}).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(h, &models.User{Role: models.RoleStandard}).Code)
	assert.Equal(t, http.StatusUnauthorized, serveAs(h, nil).Code)

	adminOnly := RequireRole(logging.Discard(), models.RoleAdmin)(next)
	assert.Equal(t, http.StatusForbidden, serveAs(adminOnly, &models.User{Role: models.RoleCreator}).Code)
}

func TestRequireVerified(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireVerified(logging.Discard())(next)

	assert.Equal(t, http.StatusOK, serveAs(h, &models.User{IsVerified: true}).Code)

	rec := serveAs(h, &models.User{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "please verify your email address")

	assert.Equal(t, http.StatusUnauthorized, serveAs(h, nil).Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info")

	h := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"path":"/healthz"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"request_id"`)
}

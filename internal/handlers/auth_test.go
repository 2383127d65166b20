package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaughan-dsouza/taskboard/internal/auth"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/mail"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
	"github.com/vaughan-dsouza/taskboard/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, mail.Message) error { return nil }

func newTestHandler(t *testing.T, carrier session.Carrier) *Handler {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("handler-test-secret", time.Hour)
	require.NoError(t, err)
	svc := service.NewUserService(store.NewMemoryRepository(), issuer, &auth.Hasher{Cost: bcrypt.MinCost},
		nopMailer{}, logging.Discard(), service.Options{VerifyTokenTTL: time.Hour, ResetTokenTTL: time.Hour})
	return NewHandler(svc, carrier, logging.Discard())
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func TestRegister_BearerReturnsToken(t *testing.T) {
	h := newTestHandler(t, session.BearerCarrier{})

	rec := post(h.Auth.Register, `{"name":"Ada","email":"ada@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bearer", body["session_mode"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["expires_at"])
	assert.Equal(t, "standard", body["role"])
}

func TestLogin_CookieKeepsTokenOutOfBody(t *testing.T) {
	h := newTestHandler(t, session.CookieCarrier{Secure: true})
	require.Equal(t, http.StatusCreated, post(h.Auth.Register, `{"name":"Ada","email":"ada@x.com","password":"secret1"}`).Code)

	rec := post(h.Auth.Login, `{"email":"ada@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"token"`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}

func TestHandlers_BadInput(t *testing.T) {
	h := newTestHandler(t, session.BearerCarrier{})

	tests := []struct {
		name   string
		fn     http.HandlerFunc
		body   string
		status int
	}{
		{"register invalid json", h.Auth.Register, `{`, http.StatusBadRequest},
		{"register unknown field", h.Auth.Register, `{"role":"admin"}`, http.StatusBadRequest},
		{"register weak password", h.Auth.Register, `{"name":"A","email":"a@x.com","password":"1"}`, http.StatusBadRequest},
		{"login empty", h.Auth.Login, ``, http.StatusBadRequest},
		{"forgot malformed email", h.Auth.ForgotPassword, `{"email":"nope"}`, http.StatusBadRequest},
		{"forgot unknown email", h.Auth.ForgotPassword, `{"email":"ghost@x.com"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, post(tt.fn, tt.body).Code)
		})
	}
}

func TestProtectedHandlers_RequireUser(t *testing.T) {
	h := newTestHandler(t, session.BearerCarrier{})

	for name, fn := range map[string]http.HandlerFunc{
		"get user":        h.Auth.GetUser,
		"update user":     h.Auth.UpdateUser,
		"change password": h.Auth.ChangePassword,
		"verify email":    h.Auth.VerifyEmail,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, post(fn, `{}`).Code)
		})
	}
}

func TestResetPassword_UnknownToken(t *testing.T) {
	h := newTestHandler(t, session.BearerCarrier{})

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", strings.Repeat("ab", 32))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"secret9"}`))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.Auth.ResetPassword(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, rec.Body.String())
}

func TestLogout_CookieExpires(t *testing.T) {
	h := newTestHandler(t, session.CookieCarrier{})

	rec := httptest.NewRecorder()
	h.Auth.Logout(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

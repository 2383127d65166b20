package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaughan-dsouza/taskboard/internal/auth"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/mail"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/server"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
	"github.com/vaughan-dsouza/taskboard/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, mail.Message) error { return nil }

type backend struct {
	url  string
	repo *store.MemoryRepository
	mode config.SessionMode
}

func newBackend(t *testing.T, mode config.SessionMode) *backend {
	t.Helper()
	return newBackendWithConfig(t, &config.Config{SessionMode: mode})
}

func newBackendWithConfig(t *testing.T, cfg *config.Config) *backend {
	t.Helper()
	repo := store.NewMemoryRepository()
	issuer, err := auth.NewTokenIssuer("client-test-secret", time.Hour)
	require.NoError(t, err)

	svc := service.NewUserService(repo, issuer, &auth.Hasher{Cost: bcrypt.MinCost}, nopMailer{}, logging.Discard(), service.Options{
		ClientURL: "http://client.test", VerifyTokenTTL: time.Hour, ResetTokenTTL: time.Hour,
	})
	carrier := session.New(cfg)
	srv := httptest.NewServer(server.NewRouter(svc, carrier, nil, logging.Discard()))
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL, repo: repo, mode: cfg.SessionMode}
}

func (b *backend) seed(t *testing.T, email string, role models.Role) {
	t.Helper()
	hash, err := (&auth.Hasher{Cost: bcrypt.MinCost}).Hash("secret1")
	require.NoError(t, err)
	require.NoError(t, b.repo.Create(context.Background(), &models.User{
		ID: uuid.New(), Name: email, Email: email, Password: hash, Role: role, IsVerified: true,
	}))
}

func (b *backend) client(t *testing.T, tokens TokenStore) *Client {
	t.Helper()
	c, err := New(b.url, b.mode, tokens)
	require.NoError(t, err)
	return c
}

func TestSession_LifecycleBothModes(t *testing.T) {
	for _, mode := range []config.SessionMode{config.SessionCookie, config.SessionBearer} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			b := newBackend(t, mode)
			tokens := &MemoryTokenStore{}

			s := NewSession(b.client(t, tokens))
			require.NoError(t, s.Register(ctx, "Ada", "ada@x.com", "secret1"))

			st := s.State()
			assert.True(t, st.LoggedIn)
			assert.False(t, st.Loading)
			require.NotNil(t, st.User)
			assert.Equal(t, "ada@x.com", st.User.Email)
			assert.Empty(t, st.AllUsers)

			stored, _ := tokens.Load()
			assert.NotEmpty(t, stored)

			// a new process with the same store picks the session back up
			restored := NewSession(b.client(t, tokens))
			require.NoError(t, restored.Hydrate(ctx))
			assert.True(t, restored.State().LoggedIn)
			assert.Equal(t, "ada@x.com", restored.State().User.Email)

			require.NoError(t, restored.Logout(ctx))
			assert.False(t, restored.State().LoggedIn)
			assert.Nil(t, restored.State().User)
			stored, _ = tokens.Load()
			assert.Empty(t, stored)
		})
	}
}

func TestSession_SecureCookieOverPlainHTTP(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	require.Equal(t, config.SessionCookie, cfg.SessionMode)
	require.True(t, cfg.CookieSecure)

	b := newBackendWithConfig(t, cfg)
	b.seed(t, "ada@x.com", models.RoleStandard)
	tokens := &MemoryTokenStore{}
	s := NewSession(b.client(t, tokens))

	err := s.Login(ctx, "ada@x.com", "secret1")
	assert.ErrorIs(t, err, ErrCookieNotStored)
	assert.False(t, s.State().LoggedIn)
	assert.Nil(t, s.State().User)

	stored, _ := tokens.Load()
	assert.Empty(t, stored)

	err = s.Register(ctx, "Bob", "bob@x.com", "secret1")
	assert.ErrorIs(t, err, ErrCookieNotStored)
	assert.False(t, s.State().LoggedIn)
}

func TestSession_HydrateWithoutToken(t *testing.T) {
	b := newBackend(t, config.SessionBearer)
	s := NewSession(b.client(t, nil))

	require.NoError(t, s.Hydrate(context.Background()))
	assert.False(t, s.State().LoggedIn)
}

func TestSession_HydrateWithStaleToken(t *testing.T) {
	b := newBackend(t, config.SessionBearer)
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save("expired-or-forged"))

	s := NewSession(b.client(t, tokens))
	require.NoError(t, s.Hydrate(context.Background()))
	assert.False(t, s.State().LoggedIn)

	stored, _ := tokens.Load()
	assert.Empty(t, stored)
}

func TestSession_AdminLoadsAllUsers(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.SessionBearer)
	b.seed(t, "admin@x.com", models.RoleAdmin)
	b.seed(t, "std@x.com", models.RoleStandard)

	s := NewSession(b.client(t, nil))
	require.NoError(t, s.Login(ctx, "admin@x.com", "secret1"))
	st := s.State()
	require.Len(t, st.AllUsers, 2)

	var victim uuid.UUID
	for _, u := range st.AllUsers {
		if u.Email == "std@x.com" {
			victim = u.ID
		}
	}
	require.NoError(t, s.DeleteUser(ctx, victim))
	assert.Len(t, s.State().AllUsers, 1)
}

func TestSession_StandardUserGetsForbidden(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.SessionCookie)
	b.seed(t, "std@x.com", models.RoleStandard)

	s := NewSession(b.client(t, nil))
	require.NoError(t, s.Login(ctx, "std@x.com", "secret1"))
	assert.Empty(t, s.State().AllUsers)

	err := s.RefreshUsers(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestSession_UpdateProfileAndSubscribe(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.SessionBearer)
	s := NewSession(b.client(t, nil))

	var mu sync.Mutex
	var seen []State
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})

	require.NoError(t, s.Register(ctx, "Ada", "ada@x.com", "secret1"))
	bio := "hello"
	require.NoError(t, s.UpdateProfile(ctx, ProfileUpdate{Bio: &bio}))
	assert.Equal(t, "hello", s.State().User.Bio)

	mu.Lock()
	count := len(seen)
	sawLoading := false
	for _, st := range seen {
		sawLoading = sawLoading || st.Loading
	}
	mu.Unlock()
	assert.True(t, sawLoading)
	assert.Greater(t, count, 2)

	unsubscribe()
	require.NoError(t, s.UpdateProfile(ctx, ProfileUpdate{Bio: &bio}))
	mu.Lock()
	assert.Equal(t, count, len(seen))
	mu.Unlock()
}

func TestClient_APIError(t *testing.T) {
	b := newBackend(t, config.SessionBearer)
	c := b.client(t, nil)

	_, err := c.Login(context.Background(), "nobody@x.com", "secret1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid email or password", apiErr.Message)
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	_, err := New("http://localhost", config.SessionMode("carrier-pigeon"), nil)
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	s := NewSession(nil)
	assert.Same(t, s, FromContext(WithSession(context.Background(), s)))
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileTokenStore(path)

	token, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Save("abc"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	token, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileTokenStore(path).Load()
	assert.Error(t, err)
}

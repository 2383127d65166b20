// Package client is a Go client for the auth API together with an explicit
// session-state object for front ends built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/session"
)

// ErrCookieNotStored means the server accepted the credentials but the
// session cookie never reached the jar, typically a Secure cookie sent to
// an http:// base URL.
var ErrCookieNotStored = errors.New("client: session cookie was not stored (Secure cookie over http? use https or set COOKIE_SECURE=false on the server)")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// AuthResult is the body of a successful login or registration.
type AuthResult struct {
	models.UserSummary
	SessionMode config.SessionMode `json:"session_mode"`
	Token       string             `json:"token,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Bio   *string `json:"bio,omitempty"`
	Photo *string `json:"photo,omitempty"`
}

// Client talks to one API deployment. In cookie mode the session cookie
// lives in a cookie jar; in bearer mode the token is sent in the
// Authorization header. Either way the credential is mirrored into the
// TokenStore so it survives restarts.
type Client struct {
	base   *url.URL
	mode   config.SessionMode
	http   *http.Client
	tokens TokenStore
}

func New(baseURL string, mode config.SessionMode, tokens TokenStore) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("client: unknown session mode %q", mode)
	}
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}

	hc := &http.Client{Timeout: 15 * time.Second}
	if mode == config.SessionCookie {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	c := &Client{base: base, mode: mode, http: hc, tokens: tokens}
	if err := c.restore(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Mode() config.SessionMode { return c.mode }

// restore seeds the cookie jar from the token store.
func (c *Client) restore() error {
	if c.mode != config.SessionCookie {
		return nil
	}
	token, err := c.tokens.Load()
	if err != nil || token == "" {
		return err
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: session.CookieName, Value: token, Path: "/"}})
	return nil
}

// persist mirrors the jar's session cookie into the token store.
func (c *Client) persist() error {
	if c.mode != config.SessionCookie {
		return nil
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == session.CookieName {
			return c.tokens.Save(ck.Value)
		}
	}
	return c.tokens.Clear()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.mode == config.SessionBearer {
		token, err := c.tokens.Load()
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := c.persist(); err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) startSession(res *AuthResult) error {
	switch c.mode {
	case config.SessionBearer:
		if res.Token == "" {
			return errors.New("client: server returned no bearer token")
		}
		return c.tokens.Save(res.Token)
	case config.SessionCookie:
		if !c.hasSessionCookie() {
			return ErrCookieNotStored
		}
	}
	return nil
}

func (c *Client) hasSessionCookie() bool {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == session.CookieName && ck.Value != "" {
			return true
		}
	}
	return false
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var res AuthResult
	in := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/register", in, &res); err != nil {
		return nil, err
	}
	if err := c.startSession(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", in, &res); err != nil {
		return nil, err
	}
	if err := c.startSession(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout ends the server-side session and always drops the local token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/logout", nil, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) LoginStatus(ctx context.Context) (bool, error) {
	var ok bool
	if err := c.do(ctx, http.MethodGet, "/login-status", nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Client) GetUser(ctx context.Context) (*models.UserSummary, error) {
	var u models.UserSummary
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, upd ProfileUpdate) (*models.UserSummary, error) {
	var u models.UserSummary
	if err := c.do(ctx, http.MethodPatch, "/user", upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPatch, "/change-password", in, nil)
}

func (c *Client) RequestVerification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/verify-email", nil, nil)
}

func (c *Client) VerifyUser(ctx context.Context, token string) (*models.UserSummary, error) {
	var u models.UserSummary
	if err := c.do(ctx, http.MethodPost, "/verify-user/"+url.PathEscape(token), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/reset-password/"+url.PathEscape(token), map[string]string{"password": password}, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	var users []models.UserSummary
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+id.String(), nil, nil)
}

// Package session moves session tokens between client and server. A
// deployment runs exactly one Carrier: cookie or bearer.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vaughan-dsouza/taskboard/internal/config"
)

const CookieName = "token"

var ErrNoToken = errors.New("session: no token presented")

type Carrier interface {
	// Extract returns the token presented with r, or ErrNoToken.
	Extract(r *http.Request) (string, error)
	// Set hands a freshly issued token to the client.
	Set(w http.ResponseWriter, token string, expiresAt time.Time)
	// Clear ends the client-held session.
	Clear(w http.ResponseWriter)
	Mode() config.SessionMode
}

// New returns the carrier for the configured mode.
func New(cfg *config.Config) Carrier {
	if cfg.SessionMode == config.SessionBearer {
		return BearerCarrier{}
	}
	return CookieCarrier{Secure: cfg.CookieSecure}
}

// CookieCarrier keeps the token in an HttpOnly cookie.
type CookieCarrier struct {
	Secure bool
}

func (c CookieCarrier) Mode() config.SessionMode { return config.SessionCookie }

func (c CookieCarrier) Extract(r *http.Request) (string, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return "", ErrNoToken
	}
	return ck.Value, nil
}

func (c CookieCarrier) Set(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, c.cookie(token, expiresAt))
}

func (c CookieCarrier) Clear(w http.ResponseWriter) {
	ck := c.cookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}

func (c CookieCarrier) cookie(value string, expires time.Time) *http.Cookie {
	// cross-site clients need SameSite=None, which browsers only accept with Secure
	sameSite := http.SameSiteLaxMode
	if c.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}

// BearerCarrier reads the Authorization header. The token itself is
// returned in the response body, so Set and Clear have nothing to do.
type BearerCarrier struct{}

func (BearerCarrier) Mode() config.SessionMode { return config.SessionBearer }

func (BearerCarrier) Extract(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrNoToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (BearerCarrier) Set(http.ResponseWriter, string, time.Time) {}

func (BearerCarrier) Clear(http.ResponseWriter) {}

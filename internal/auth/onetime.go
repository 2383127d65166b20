package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Purpose names what a one-time token may be redeemed for.
type Purpose string

const (
	PurposeVerification Purpose = "verification"
	PurposeReset        Purpose = "reset"
)

// OneTimeToken is a freshly minted single-use token. Plain is delivered to
// the user and never stored; Hash is what the credential store keeps.
type OneTimeToken struct {
	Purpose   Purpose
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

const oneTimeTokenBytes = 32

// NewOneTimeToken mints a random token valid until now+ttl.
func NewOneTimeToken(purpose Purpose, ttl time.Duration, now time.Time) (OneTimeToken, error) {
	b := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return OneTimeToken{}, err
	}
	plain := hex.EncodeToString(b)
	return OneTimeToken{
		Purpose:   purpose,
		Plain:     plain,
		Hash:      HashOneTimeToken(plain),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// HashOneTimeToken returns the hex SHA-256 of a plaintext token.
func HashOneTimeToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

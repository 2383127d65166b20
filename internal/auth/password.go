package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword    = errors.New("password must not be empty")
	ErrPasswordMismatch = errors.New("password mismatch")
)

// Hasher hashes and compares passwords. Cost is configurable so tests can
// run with bcrypt.MinCost.
type Hasher struct {
	Cost int
}

func NewHasher() *Hasher { return &Hasher{Cost: bcrypt.DefaultCost} }

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns ErrPasswordMismatch when password does not match hash.
func (h *Hasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}

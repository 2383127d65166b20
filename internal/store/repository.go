// Package store persists user credentials. Uniqueness and single-use token
// redemption are enforced by the storage layer itself through conditional
// writes, so callers never need their own locking.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate, now time.Time) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error

	SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error

	// ConsumeVerificationToken marks the owner of an unexpired token as
	// verified and clears the token in one step. ErrNotFound means the token
	// is unknown, already used or expired.
	ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	// ConsumeResetToken replaces the owner's password hash and clears the
	// token in one step. Same error contract as ConsumeVerificationToken.
	ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*models.User, error)

	// PurgeExpiredTokens clears every verification/reset token whose expiry
	// is at or before now and reports how many were cleared.
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Password   string    `db:"password_hash" json:"-"`
	Role       Role      `db:"role" json:"role"`
	IsVerified bool      `db:"is_verified" json:"is_verified"`
	Photo      string    `db:"photo" json:"photo"`
	Bio        string    `db:"bio" json:"bio"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// one-time token state; only the SHA-256 hash is persisted
	VerificationTokenHash *string    `db:"verification_token_hash" json:"-"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at" json:"-"`
	ResetTokenHash        *string    `db:"reset_token_hash" json:"-"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at" json:"-"`
}

// UserSummary is the public projection of a User.
type UserSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"is_verified"`
	Photo      string    `json:"photo"`
	Bio        string    `json:"bio"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Photo:      u.Photo,
		Bio:        u.Bio,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// ProfileUpdate carries the optional fields of PATCH /user.
type ProfileUpdate struct {
	Name  *string
	Bio   *string
	Photo *string
}

package service

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

var passwordRules = []validation.Rule{validation.Required, validation.Length(minPasswordLen, maxPasswordLen)}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, passwordRules...),
	)
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

type ForgotPasswordInput struct {
	Email string `json:"email"`
}

func (in ForgotPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
	)
}

type ResetPasswordInput struct {
	Password string `json:"password"`
}

func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Password, passwordRules...),
	)
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, passwordRules...),
	)
}

type UpdateProfileInput struct {
	Name  *string `json:"name"`
	Bio   *string `json:"bio"`
	Photo *string `json:"photo"`
}

func (in UpdateProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.Bio, validation.Length(0, 1000)),
		validation.Field(&in.Photo, validation.Length(0, 2048), is.URL),
	)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validate runs v.Validate and converts failures into a Validation error.
func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

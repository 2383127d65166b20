package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/auth"
	"github.com/vaughan-dsouza/taskboard/internal/mail"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/store"
)

var errInvalidOneTimeToken = apperr.Unauthorized("invalid or expired token")

// RequestVerification mints a verification token for id and emails the link.
func (s *UserService) RequestVerification(ctx context.Context, id uuid.UUID) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return apperr.Validation("user is already verified")
	}

	tok, err := auth.NewOneTimeToken(auth.PurposeVerification, s.opts.VerifyTokenTTL, s.now())
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.SetVerificationToken(ctx, u.ID, tok.Hash, tok.ExpiresAt); err != nil {
		return apperr.Internal(err)
	}

	msg, err := mail.VerificationEmail(u.Email, u.Name, s.opts.ClientURL+"/verify-email/"+tok.Plain)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return apperr.Internal(err)
	}

	s.logger.Info(ctx, "verification email queued", "user_id", u.ID)
	return nil
}

// VerifyUser redeems a verification token.
func (s *UserService) VerifyUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errInvalidOneTimeToken
	}

	u, err := s.users.ConsumeVerificationToken(ctx, auth.HashOneTimeToken(token), s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidOneTimeToken
		}
		return nil, apperr.Internal(err)
	}

	s.logger.Info(ctx, "user verified", "user_id", u.ID)
	return u, nil
}

// RequestPasswordReset always succeeds for well-formed input so callers
// cannot probe which addresses have accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validate(in); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return apperr.Internal(err)
	}

	tok, err := auth.NewOneTimeToken(auth.PurposeReset, s.opts.ResetTokenTTL, s.now())
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, tok.Hash, tok.ExpiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperr.Internal(err)
	}

	msg, err := mail.PasswordResetEmail(u.Email, u.Name, s.opts.ClientURL+"/reset-password/"+tok.Plain)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return apperr.Internal(err)
	}

	s.logger.Info(ctx, "password reset email queued", "user_id", u.ID)
	return nil
}

// ResetPassword redeems a reset token and replaces the password.
func (s *UserService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) error {
	if err := validate(in); err != nil {
		return err
	}
	if token == "" {
		return errInvalidOneTimeToken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return apperr.Internal(err)
	}

	u, err := s.users.ConsumeResetToken(ctx, auth.HashOneTimeToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errInvalidOneTimeToken
		}
		return apperr.Internal(err)
	}

	s.logger.Info(ctx, "password reset", "user_id", u.ID)
	return nil
}

// PurgeExpiredTokens clears stale verification and reset tokens.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.users.PurgeExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

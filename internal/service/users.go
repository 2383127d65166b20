// Package service implements the credential operations: registration,
// login, session resolution, email verification, password reset and
// change, profile updates and the admin user listing.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/auth"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/mail"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/store"
)

// Session is the result of a successful login or registration.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type Options struct {
	// ClientURL is the base the emailed links point at.
	ClientURL      string
	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration
}

type UserService struct {
	users  store.UserRepository
	tokens *auth.TokenIssuer
	hasher *auth.Hasher
	mailer mail.Mailer
	logger logging.Logger
	opts   Options
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users store.UserRepository, tokens *auth.TokenIssuer, hasher *auth.Hasher,
	mailer mail.Mailer, logger logging.Logger, opts Options) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		mailer: mailer,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u := &models.User{
		ID:       uuid.New(),
		Name:     in.Name,
		Email:    in.Email,
		Password: hash,
		Role:     models.RoleStandard,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperr.Conflict("user already exists")
		}
		return nil, apperr.Internal(err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate(in); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// burn the same bcrypt time as a real comparison
			_ = s.hasher.Compare(s.dummy(), in.Password)
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, apperr.Internal(err)
	}

	if err := s.hasher.Compare(u.Password, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, apperr.Internal(err)
	}

	return s.issue(u)
}

// Authenticate resolves a session token to its user. It has no side
// effects, so repeated calls with the same token behave identically.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("not authorized, please login")
	}

	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperr.Unauthorized("session expired, please login again")
		}
		return nil, apperr.Unauthorized("not authorized, token failed")
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, apperr.Unauthorized("not authorized, token failed")
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// LoginStatus reports whether token currently resolves to a user.
func (s *UserService) LoginStatus(ctx context.Context, token string) bool {
	_, err := s.Authenticate(ctx, token)
	return err == nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	u, err := s.users.UpdateProfile(ctx, id, models.ProfileUpdate{Name: in.Name, Bio: in.Bio, Photo: in.Photo}, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, in ChangePasswordInput) error {
	if err := validate(in); err != nil {
		return err
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(u.Password, in.CurrentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperr.Unauthorized("invalid current password")
		}
		return apperr.Internal(err)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal(err)
	}

	s.logger.Info(ctx, "password changed", "user_id", id)
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal(err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *UserService) issue(u *models.User) (*Session, error) {
	token, exp, err := s.tokens.IssueSessionToken(u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

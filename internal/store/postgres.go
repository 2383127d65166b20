package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vaughan-dsouza/taskboard/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, is_verified, photo, bio,
		verification_token_hash, verification_expires_at, reset_token_hash, reset_expires_at,
		created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, u.ID, u.Name, u.Email, u.Password, u.Role, u.IsVerified).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    bio = COALESCE($3, bio),
		    photo = COALESCE($4, photo),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	return r.getOne(ctx, query, id, upd.Name, upd.Bio, upd.Photo, now)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, now)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET verification_token_hash = $2, verification_expires_at = $3 WHERE id = $1`,
		id, hash, expiresAt)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_expires_at = $3 WHERE id = $1`,
		id, hash, expiresAt)
}

func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE,
		    verification_token_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = $2
		WHERE verification_token_hash = $1 AND verification_expires_at > $2
		RETURNING ` + userColumns

	u, err := r.getOne(ctx, query, hash, now)
	if errors.Is(err, ErrNotFound) {
		return nil, r.clearStale(ctx,
			`UPDATE users SET verification_token_hash = NULL, verification_expires_at = NULL WHERE verification_token_hash = $1`,
			hash)
	}
	return u, err
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = $3
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING ` + userColumns

	u, err := r.getOne(ctx, query, hash, passwordHash, now)
	if errors.Is(err, ErrNotFound) {
		return nil, r.clearStale(ctx,
			`UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL WHERE reset_token_hash = $1`,
			hash)
	}
	return u, err
}

func (r *PostgresRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	queries := []string{
		`UPDATE users SET verification_token_hash = NULL, verification_expires_at = NULL
		 WHERE verification_token_hash IS NOT NULL AND verification_expires_at <= $1`,
		`UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL
		 WHERE reset_token_hash IS NOT NULL AND reset_expires_at <= $1`,
	}
	for _, q := range queries {
		res, err := r.db.ExecContext(ctx, q, now)
		if err != nil {
			return total, fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("db error: %w", err)
		}
		total += n
	}
	return total, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u := &models.User{}
	if err := r.db.GetContext(ctx, u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// clearStale drops a token that failed redemption (expired or unknown) and
// always reports ErrNotFound unless the cleanup itself fails.
func (r *PostgresRepository) clearStale(ctx context.Context, query, hash string) error {
	if _, err := r.db.ExecContext(ctx, query, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return ErrNotFound
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/models"
)

// MemoryRepository is an in-process UserRepository for development and
// tests. Every operation holds the mutex for its full check-and-set.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return ErrDuplicateEmail
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	cp := *u
	r.users[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Photo != nil {
		u.Photo = *upd.Photo
	}
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Password = passwordHash
	u.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.users, id)
	return nil
}

func (r *MemoryRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.VerificationTokenHash = &hash
	u.VerificationExpiresAt = &expiresAt
	return nil
}

func (r *MemoryRepository) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetTokenHash = &hash
	u.ResetExpiresAt = &expiresAt
	return nil
}

func (r *MemoryRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.VerificationTokenHash == nil || *u.VerificationTokenHash != hash {
			continue
		}
		valid := u.VerificationExpiresAt != nil && u.VerificationExpiresAt.After(now)
		u.VerificationTokenHash, u.VerificationExpiresAt = nil, nil
		if !valid {
			return nil, ErrNotFound
		}
		u.IsVerified = true
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != hash {
			continue
		}
		valid := u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now)
		u.ResetTokenHash, u.ResetExpiresAt = nil, nil
		if !valid {
			return nil, ErrNotFound
		}
		u.Password = passwordHash
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		if u.VerificationTokenHash != nil && u.VerificationExpiresAt != nil && !u.VerificationExpiresAt.After(now) {
			u.VerificationTokenHash, u.VerificationExpiresAt = nil, nil
			n++
		}
		if u.ResetTokenHash != nil && u.ResetExpiresAt != nil && !u.ResetExpiresAt.After(now) {
			u.ResetTokenHash, u.ResetExpiresAt = nil, nil
			n++
		}
	}
	return n, nil
}

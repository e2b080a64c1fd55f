package repository

import (
	"context"
	"sync"
	"time"

	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/user/domain"
)

// MemoryRepository keeps accounts in a map guarded by a mutex. Used for local runs and tests.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]domain.User), now: time.Now}
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Email]; ok {
		return ErrDuplicateEmail
	}
	r.users[u.Email] = *u
	return nil
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, email, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = tokenHash
	u.UpdatedAt = r.now().UTC()
	r.users[email] = u
	return nil
}

func (r *MemoryRepository) CompareRefreshToken(_ context.Context, email, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return false, nil
	}
	return security.RefreshTokenHashEqual(tokenHash, u.RefreshTokenHash), nil
}

func (r *MemoryRepository) ConsumeRefreshToken(_ context.Context, email, tokenHash, replacementHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok || !security.RefreshTokenHashEqual(tokenHash, u.RefreshTokenHash) {
		return false, nil
	}
	u.RefreshTokenHash = replacementHash
	u.UpdatedAt = r.now().UTC()
	r.users[email] = u
	return true, nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, email string, p domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.DOB = p.DOB
	u.Address = p.Address
	u.UpdatedAt = r.now().UTC()
	r.users[email] = u
	return &u, nil
}

// PingContext always succeeds.
func (r *MemoryRepository) PingContext(context.Context) error { return nil }

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*RedisRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

package repository

import (
	"time"

	"movie-auth/backend/internal/user/domain"
)

func newTestUser(email string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{Email: email, PasswordHash: "$2a$10$hash", CreatedAt: now, UpdatedAt: now}
}

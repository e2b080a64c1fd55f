package repository

import (
	"context"
	"errors"

	"movie-auth/backend/internal/user/domain"
)

var (
	// ErrDuplicateEmail is returned by Create when an account with the email already exists.
	ErrDuplicateEmail = errors.New("user already exists")
	// ErrNotFound is returned by writes that target an account that does not exist.
	ErrNotFound = errors.New("user not found")
)

// Repository defines persistence for the per-account user record.
// Emails passed in are already normalized; refresh tokens are passed as digests.
type Repository interface {
	// GetByEmail returns the user, or nil if not found. Errors only on store failure.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts u. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, u *domain.User) error
	// SetRefreshToken replaces the stored refresh token digest; "" logs the account out.
	// Returns ErrNotFound if no record exists.
	SetRefreshToken(ctx context.Context, email, tokenHash string) error
	// CompareRefreshToken reports whether tokenHash equals the stored digest.
	// An empty stored digest never matches.
	CompareRefreshToken(ctx context.Context, email, tokenHash string) (bool, error)
	// ConsumeRefreshToken atomically swaps the stored digest for replacementHash if and only if
	// it equals tokenHash and is non-empty. An empty replacementHash just clears it. Exactly one
	// of any set of concurrent callers with the same digest wins.
	ConsumeRefreshToken(ctx context.Context, email, tokenHash, replacementHash string) (bool, error)
	// UpdateProfile replaces every profile field and returns the updated record.
	// Returns ErrNotFound if no record exists.
	UpdateProfile(ctx context.Context, email string, p domain.ProfileUpdate) (*domain.User, error)
}

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-auth/backend/internal/user/domain"
)

// runRepositoryContract exercises behaviour every backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, r Repository, email string) {
		t.Helper()
		require.NoError(t, r.Create(ctx, &domain.User{
			Email:        email,
			PasswordHash: "$2a$10$hash",
			CreatedAt:    now,
			UpdatedAt:    now,
		}))
	}

	t.Run("GetByEmail missing returns nil", func(t *testing.T) {
		r := newRepo(t)
		u, err := r.GetByEmail(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("Create then GetByEmail", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		u, err := r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "a@x.com", u.Email)
		assert.Equal(t, "$2a$10$hash", u.PasswordHash)
		assert.False(t, u.LoggedIn())
		assert.Empty(t, u.FirstName)
		assert.Empty(t, u.DOB)
	})

	t.Run("Create duplicate", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		err := r.Create(ctx, &domain.User{Email: "a@x.com", PasswordHash: "other", CreatedAt: now, UpdatedAt: now})
		assert.ErrorIs(t, err, ErrDuplicateEmail)

		u, err := r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$hash", u.PasswordHash, "duplicate create must not overwrite")
	})

	t.Run("SetRefreshToken and Compare", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", "digest-1"))

		ok, err := r.CompareRefreshToken(ctx, "a@x.com", "digest-1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.CompareRefreshToken(ctx, "a@x.com", "digest-2")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", ""))
		ok, err = r.CompareRefreshToken(ctx, "a@x.com", "")
		require.NoError(t, err)
		assert.False(t, ok, "empty stored token never matches")
		u, err := r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, u.LoggedIn())
	})

	t.Run("SetRefreshToken missing account", func(t *testing.T) {
		r := newRepo(t)
		assert.ErrorIs(t, r.SetRefreshToken(ctx, "nobody@x.com", "d"), ErrNotFound)
		ok, err := r.CompareRefreshToken(ctx, "nobody@x.com", "d")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConsumeRefreshToken", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", "digest-1"))

		ok, err := r.ConsumeRefreshToken(ctx, "a@x.com", "wrong", "")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = r.ConsumeRefreshToken(ctx, "a@x.com", "digest-1", "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.ConsumeRefreshToken(ctx, "a@x.com", "digest-1", "")
		require.NoError(t, err)
		assert.False(t, ok, "second consume must fail")

		ok, err = r.ConsumeRefreshToken(ctx, "a@x.com", "", "")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = r.ConsumeRefreshToken(ctx, "nobody@x.com", "digest-1", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConsumeRefreshToken with replacement", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", "digest-1"))

		ok, err := r.ConsumeRefreshToken(ctx, "a@x.com", "digest-1", "digest-2")
		require.NoError(t, err)
		require.True(t, ok)

		u, err := r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "digest-2", u.RefreshTokenHash)

		ok, err = r.CompareRefreshToken(ctx, "a@x.com", "digest-1")
		require.NoError(t, err)
		assert.False(t, ok, "old digest no longer matches")

		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", ""))
		ok, err = r.ConsumeRefreshToken(ctx, "a@x.com", "digest-2", "digest-3")
		require.NoError(t, err)
		assert.False(t, ok, "a cleared account cannot be rotated back in")
		u, err = r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Empty(t, u.RefreshTokenHash)
	})

	t.Run("ConsumeRefreshToken concurrent single winner", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", "digest-1"))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := r.ConsumeRefreshToken(ctx, "a@x.com", "digest-1", "")
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a@x.com")
		require.NoError(t, r.SetRefreshToken(ctx, "a@x.com", "digest-1"))

		u, err := r.UpdateProfile(ctx, "a@x.com", domain.ProfileUpdate{
			FirstName: "Ann", LastName: "Lee", DOB: "1990-12-10", Address: "1 Main St",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ann", u.FirstName)
		assert.Equal(t, "Lee", u.LastName)
		assert.Equal(t, "1990-12-10", u.DOB)
		assert.Equal(t, "1 Main St", u.Address)
		assert.Equal(t, "digest-1", u.RefreshTokenHash, "profile update keeps the session")

		got, err := r.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.Profile(), got.Profile())
	})

	t.Run("UpdateProfile missing account", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.UpdateProfile(ctx, "nobody@x.com", domain.ProfileUpdate{FirstName: "A", LastName: "B", DOB: "1990-01-01", Address: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/user/domain"
)

// Hash fields of an account record.
const (
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldRefreshHash  = "refresh_token_hash"
	fieldFirstName    = "first_name"
	fieldLastName     = "last_name"
	fieldDOB          = "dob"
	fieldAddress      = "address"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
)

var (
	// KEYS[1] = account key; ARGV = field/value pairs.
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

	// KEYS[1] = account key; ARGV = field/value pairs.
	updateExistingScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

	// KEYS[1] = account key; ARGV[1] = digest; ARGV[2] = replacement digest; ARGV[3] = updated_at.
	consumeScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'refresh_token_hash')
if not cur or cur == '' or cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'refresh_token_hash', ARGV[2], 'updated_at', ARGV[3])
return 1
`)
)

// RedisRepository stores each account as a hash under prefix+email.
// Conditional writes run as Lua scripts so each one is atomic on the server.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository returns a user repository backed by client. An empty prefix defaults to "user:".
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "user:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(email string) string {
	return r.prefix + email
}

func (r *RedisRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	fields, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return userFromHash(fields)
}

func (r *RedisRepository) Create(ctx context.Context, u *domain.User) error {
	args := []any{
		fieldEmail, u.Email,
		fieldPasswordHash, u.PasswordHash,
		fieldRefreshHash, u.RefreshTokenHash,
		fieldFirstName, u.FirstName,
		fieldLastName, u.LastName,
		fieldDOB, u.DOB,
		fieldAddress, u.Address,
		fieldCreatedAt, formatTime(u.CreatedAt),
		fieldUpdatedAt, formatTime(u.UpdatedAt),
	}
	ok, err := createScript.Run(ctx, r.client, []string{r.key(u.Email)}, args...).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrDuplicateEmail
	}
	return nil
}

func (r *RedisRepository) SetRefreshToken(ctx context.Context, email, tokenHash string) error {
	return r.updateExisting(ctx, email,
		fieldRefreshHash, tokenHash,
		fieldUpdatedAt, formatTime(time.Now()),
	)
}

func (r *RedisRepository) CompareRefreshToken(ctx context.Context, email, tokenHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	stored, err := r.client.HGet(ctx, r.key(email), fieldRefreshHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return security.RefreshTokenHashEqual(tokenHash, stored), nil
}

func (r *RedisRepository) ConsumeRefreshToken(ctx context.Context, email, tokenHash, replacementHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	n, err := consumeScript.Run(ctx, r.client, []string{r.key(email)}, tokenHash, replacementHash, formatTime(time.Now())).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisRepository) UpdateProfile(ctx context.Context, email string, p domain.ProfileUpdate) (*domain.User, error) {
	err := r.updateExisting(ctx, email,
		fieldFirstName, p.FirstName,
		fieldLastName, p.LastName,
		fieldDOB, p.DOB,
		fieldAddress, p.Address,
		fieldUpdatedAt, formatTime(time.Now()),
	)
	if err != nil {
		return nil, err
	}
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// PingContext lets the repository serve as a health check pinger.
func (r *RedisRepository) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) updateExisting(ctx context.Context, email string, args ...any) error {
	n, err := updateExistingScript.Run(ctx, r.client, []string{r.key(email)}, args...).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func userFromHash(h map[string]string) (*domain.User, error) {
	u := &domain.User{
		Email:            h[fieldEmail],
		PasswordHash:     h[fieldPasswordHash],
		RefreshTokenHash: h[fieldRefreshHash],
		FirstName:        h[fieldFirstName],
		LastName:         h[fieldLastName],
		DOB:              h[fieldDOB],
		Address:          h[fieldAddress],
	}
	var err error
	if u.CreatedAt, err = parseTime(h[fieldCreatedAt]); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(h[fieldUpdatedAt]); err != nil {
		return nil, err
	}
	return u, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"movie-auth/backend/internal/user/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const userColumns = `email, password_hash, refresh_token_hash, first_name, last_name, dob, address, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create inserts the user. A duplicate email is reported as ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	dob, err := nullDate(u.DOB)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.Email, u.PasswordHash, nullString(u.RefreshTokenHash),
		nullString(u.FirstName), nullString(u.LastName), dob, nullString(u.Address),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// SetRefreshToken replaces the stored digest; an empty tokenHash is stored as NULL.
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, email, tokenHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = $2, updated_at = $3 WHERE email = $1`,
		email, nullString(tokenHash), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// CompareRefreshToken reports whether the stored digest equals tokenHash. NULL never matches.
func (r *PostgresRepository) CompareRefreshToken(ctx context.Context, email, tokenHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND refresh_token_hash = $2)`,
		email, tokenHash,
	).Scan(&ok)
	return ok, err
}

// ConsumeRefreshToken swaps the digest with a single conditional UPDATE; the row lock taken by
// the UPDATE serializes concurrent callers so only one sees a matching row.
func (r *PostgresRepository) ConsumeRefreshToken(ctx context.Context, email, tokenHash, replacementHash string) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = $3, updated_at = $4 WHERE email = $1 AND refresh_token_hash = $2`,
		email, tokenHash, nullString(replacementHash), time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateProfile replaces the profile columns and returns the updated row.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, email string, p domain.ProfileUpdate) (*domain.User, error) {
	dob, err := nullDate(p.DOB)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, dob = $4, address = $5, updated_at = $6
		 WHERE email = $1 RETURNING `+userColumns,
		email, p.FirstName, p.LastName, dob, p.Address, time.Now().UTC(),
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// PingContext lets the repository serve as a health check pinger.
func (r *PostgresRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                             domain.User
		refresh, first, last, address sql.NullString
		dob                           sql.NullTime
	)
	if err := row.Scan(&u.Email, &u.PasswordHash, &refresh, &first, &last, &dob, &address, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.RefreshTokenHash = refresh.String
	u.FirstName = first.String
	u.LastName = last.String
	u.Address = address.String
	if dob.Valid {
		u.DOB = dob.Time.Format(domain.DateLayout)
	}
	return &u, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(s string) (sql.NullTime, error) {
	if s == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

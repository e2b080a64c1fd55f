package repository

import (
	"context"
	"database/sql"

	"movie-auth/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_email, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID,
		sql.NullString{String: a.UserEmail, Valid: a.UserEmail != ""},
		a.Action, a.Resource, a.IP,
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""},
		a.CreatedAt,
	)
	return err
}

// ListByUser returns the most recent audit logs for email, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, email string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_email, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE user_email = $1 ORDER BY created_at DESC LIMIT $2`,
		email, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a           domain.AuditLog
			email, meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &email, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserEmail = email.String
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

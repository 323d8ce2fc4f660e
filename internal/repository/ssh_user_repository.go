package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

// SSHUser is an allowlisted public key for the SSH dashboard.
type SSHUser struct {
	ID          int64
	Username    string
	Fingerprint string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

type SSHUserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSSHUserRepository(pool PgxPool, tracer trace.Tracer) *SSHUserRepository {
	return &SSHUserRepository{pool: pool, tracer: tracer}
}

// FindByFingerprint returns nil without error when the fingerprint is
// not on the allowlist.
func (r *SSHUserRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.find-by-fingerprint")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT id, username, fingerprint, created_at, last_login_at
FROM ssh_users
WHERE fingerprint = $1`, fingerprint)

	var user SSHUser
	var lastLogin pgtype.Timestamptz
	err := row.Scan(&user.ID, &user.Username, &user.Fingerprint, &user.CreatedAt, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLoginAt = &t
	}
	return &user, nil
}

func (r *SSHUserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.update-last-login")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
UPDATE ssh_users
SET last_login_at = NOW()
WHERE id = $1`, userID)
	return err
}

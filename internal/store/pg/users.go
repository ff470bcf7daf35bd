package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minispace/minispace/internal/domain/repository"
)

type userRepo struct {
	t *tenantStore
	q querier
}

const userColumns = `id, email, password_hash, first_name, last_name, role::text,
	is_active, force_password_change, preferred_locale, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role,
		&u.IsActive, &u.ForcePasswordChange, &u.PreferredLocale, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = repository.Role(role)
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(email) = lower($1) LIMIT 1`,
		userColumns, r.t.table("users"))
	u, err := scanUser(r.q.QueryRow(ctx, q, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapErr("user by email", err)
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, r.t.table("users"))
	u, err := scanUser(r.q.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr("user by id", err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	locale := in.PreferredLocale
	if locale == "" {
		locale = "fr"
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (email, password_hash, first_name, last_name, role, preferred_locale)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, r.t.table("users"), userColumns)
	u, err := scanUser(r.q.QueryRow(ctx, q,
		in.Email, in.PasswordHash, in.FirstName, in.LastName, string(in.Role), locale))
	if err != nil {
		return nil, mapErr("create user", err)
	}
	return u, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, forceChange bool) error {
	q := fmt.Sprintf(`
		UPDATE %s SET password_hash = $2, force_password_change = $3, updated_at = NOW()
		WHERE id = $1`, r.t.table("users"))
	tag, err := r.q.Exec(ctx, q, id, hash, forceChange)
	if err != nil {
		return mapErr("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	q := fmt.Sprintf(`UPDATE %s SET email = $2, updated_at = NOW() WHERE id = $1`, r.t.table("users"))
	tag, err := r.q.Exec(ctx, q, id, email)
	if err != nil {
		return mapErr("update email", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

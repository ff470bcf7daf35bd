package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
)

type refreshRepo struct{ t *tenantStore }

func (r *refreshRepo) Create(ctx context.Context, t repository.RefreshToken) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`, r.t.table("refresh_tokens"))
	_, err := r.t.pool.Exec(ctx, q, t.ID, t.UserID, t.TokenHash, t.ExpiresAt)
	return mapErr("create refresh token", err)
}

func (r *refreshRepo) Get(ctx context.Context, id uuid.UUID) (*repository.RefreshToken, error) {
	q := fmt.Sprintf(`
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM %s WHERE id = $1`, r.t.table("refresh_tokens"))
	var t repository.RefreshToken
	err := r.t.pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return nil, mapErr("get refresh token", err)
	}
	return &t, nil
}

// Revoke es el punto de decisión de la rotación: solo una sentencia
// concurrente ve revoked = FALSE y obtiene la fila.
func (r *refreshRepo) Revoke(ctx context.Context, id uuid.UUID) (*repository.RefreshToken, error) {
	q := fmt.Sprintf(`
		UPDATE %s SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE
		RETURNING id, user_id, token_hash, expires_at, revoked, created_at`, r.t.table("refresh_tokens"))
	var t repository.RefreshToken
	err := r.t.pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return nil, mapErr("revoke refresh token", err)
	}
	return &t, nil
}

func (r *refreshRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	q := fmt.Sprintf(`UPDATE %s SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`,
		r.t.table("refresh_tokens"))
	tag, err := r.t.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, mapErr("revoke all refresh tokens", err)
	}
	return int(tag.RowsAffected()), nil
}

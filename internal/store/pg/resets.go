package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
)

type resetRepo struct{ t *tenantStore }

func (r *resetRepo) Create(ctx context.Context, t repository.PasswordResetToken) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, user_id, token, expires_at) VALUES ($1, $2, $3, $4)`,
		r.t.table("password_reset_tokens"))
	_, err := r.t.pool.Exec(ctx, q, t.ID, t.UserID, t.Token, t.ExpiresAt)
	return mapErr("create reset token", err)
}

func (r *resetRepo) GetActiveByToken(ctx context.Context, token string, now time.Time) (*repository.PasswordResetToken, error) {
	q := fmt.Sprintf(`
		SELECT id, user_id, token, used, expires_at, created_at
		FROM %s WHERE token = $1 AND used = FALSE AND expires_at > $2`, r.t.table("password_reset_tokens"))
	var t repository.PasswordResetToken
	err := r.t.pool.QueryRow(ctx, q, token, now).
		Scan(&t.ID, &t.UserID, &t.Token, &t.Used, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapErr("get reset token", err)
	}
	return &t, nil
}

func (r *resetRepo) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET used = TRUE WHERE id = $1 AND used = FALSE AND expires_at > $2`,
		r.t.table("password_reset_tokens"))
	tag, err := r.t.pool.Exec(ctx, q, id, now)
	if err != nil {
		return false, mapErr("consume reset token", err)
	}
	return tag.RowsAffected() == 1, nil
}

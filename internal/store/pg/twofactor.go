package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minispace/minispace/internal/domain/repository"
)

type twoFactorRepo struct{ t *tenantStore }

const twoFactorColumns = `id, user_id, code, expires_at, used, attempts, created_at`

func scanCode(row pgx.Row) (*repository.TwoFactorCode, error) {
	var c repository.TwoFactorCode
	var attempts int16
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.Used, &attempts, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Attempts = int(attempts)
	return &c, nil
}

func (r *twoFactorRepo) InvalidateActive(ctx context.Context, userID uuid.UUID) (int, error) {
	q := fmt.Sprintf(`UPDATE %s SET used = TRUE WHERE user_id = $1 AND used = FALSE`,
		r.t.table("two_factor_codes"))
	tag, err := r.t.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, mapErr("invalidate 2fa codes", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *twoFactorRepo) Create(ctx context.Context, c repository.TwoFactorCode) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, code, expires_at, used, attempts)
		VALUES ($1, $2, $3, $4, FALSE, 0)`, r.t.table("two_factor_codes"))
	_, err := r.t.pool.Exec(ctx, q, c.ID, c.UserID, c.Code, c.ExpiresAt)
	return mapErr("create 2fa code", err)
}

func (r *twoFactorRepo) GetLatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (*repository.TwoFactorCode, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1 AND used = FALSE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, twoFactorColumns, r.t.table("two_factor_codes"))
	c, err := scanCode(r.t.pool.QueryRow(ctx, q, userID, now))
	if err != nil {
		return nil, mapErr("latest 2fa code", err)
	}
	return c, nil
}

func (r *twoFactorRepo) IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int) (*repository.TwoFactorCode, error) {
	q := fmt.Sprintf(`
		UPDATE %s SET attempts = attempts + 1
		WHERE id = $1 AND used = FALSE AND attempts < $2
		RETURNING %s`, r.t.table("two_factor_codes"), twoFactorColumns)
	c, err := scanCode(r.t.pool.QueryRow(ctx, q, id, maxAttempts))
	if err != nil {
		return nil, mapErr("increment 2fa attempts", err)
	}
	return c, nil
}

func (r *twoFactorRepo) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET used = TRUE WHERE id = $1 AND used = FALSE`,
		r.t.table("two_factor_codes"))
	tag, err := r.t.pool.Exec(ctx, q, id)
	if err != nil {
		return false, mapErr("consume 2fa code", err)
	}
	return tag.RowsAffected() == 1, nil
}

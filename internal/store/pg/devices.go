package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
)

type deviceRepo struct{ t *tenantStore }

func (r *deviceRepo) Create(ctx context.Context, d repository.TrustedDevice) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		r.t.table("trusted_devices"))
	_, err := r.t.pool.Exec(ctx, q, d.ID, d.UserID, d.TokenHash, d.ExpiresAt)
	return mapErr("create trusted device", err)
}

func (r *deviceRepo) GetActive(ctx context.Context, id, userID uuid.UUID, now time.Time) (*repository.TrustedDevice, error) {
	q := fmt.Sprintf(`
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM %s WHERE id = $1 AND user_id = $2 AND expires_at > $3`, r.t.table("trusted_devices"))
	var d repository.TrustedDevice
	err := r.t.pool.QueryRow(ctx, q, id, userID, now).
		Scan(&d.ID, &d.UserID, &d.TokenHash, &d.ExpiresAt, &d.CreatedAt)
	if err != nil {
		return nil, mapErr("get trusted device", err)
	}
	return &d, nil
}

func (r *deviceRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.t.table("trusted_devices"))
	tag, err := r.t.pool.Exec(ctx, q, id)
	if err != nil {
		return false, mapErr("delete trusted device", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *deviceRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.t.table("trusted_devices"))
	tag, err := r.t.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, mapErr("delete expired devices", err)
	}
	return int(tag.RowsAffected()), nil
}

package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minispace/minispace/internal/domain/repository"
)

type invitationRepo struct{ t *tenantStore }

func (r *invitationRepo) Create(ctx context.Context, inv repository.Invitation) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, email, token, role, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, r.t.table("invitation_tokens"))
	_, err := r.t.pool.Exec(ctx, q, inv.ID, inv.Email, inv.Token, string(inv.Role), inv.InvitedBy, inv.ExpiresAt)
	return mapErr("create invitation", err)
}

func (r *invitationRepo) GetActiveByToken(ctx context.Context, token string, now time.Time) (*repository.Invitation, error) {
	q := fmt.Sprintf(`
		SELECT id, email, token, role::text, invited_by, used, expires_at, created_at
		FROM %s WHERE token = $1 AND used = FALSE AND expires_at > $2`, r.t.table("invitation_tokens"))
	var inv repository.Invitation
	var role string
	err := r.t.pool.QueryRow(ctx, q, token, now).
		Scan(&inv.ID, &inv.Email, &inv.Token, &role, &inv.InvitedBy, &inv.Used, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, mapErr("get invitation", err)
	}
	inv.Role = repository.Role(role)
	return &inv, nil
}

// Accept consume la invitación y crea el usuario dentro de la misma
// transacción; si el INSERT falla, el consumo se deshace.
func (r *invitationRepo) Accept(ctx context.Context, id uuid.UUID, now time.Time, in repository.CreateUserInput) (*repository.User, error) {
	var created *repository.User
	err := pgx.BeginFunc(ctx, r.t.pool, func(tx pgx.Tx) error {
		q := fmt.Sprintf(`
			UPDATE %s SET used = TRUE
			WHERE id = $1 AND used = FALSE AND expires_at > $2`, r.t.table("invitation_tokens"))
		tag, err := tx.Exec(ctx, q, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		users := &userRepo{t: r.t, q: tx}
		u, err := users.Create(ctx, in)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("pg: accept invitation: %w", err)
	}
	return created, nil
}

func (r *invitationRepo) ListPending(ctx context.Context, now time.Time) ([]repository.Invitation, error) {
	q := fmt.Sprintf(`
		SELECT i.id, i.email, i.token, i.role::text, i.invited_by, i.used, i.expires_at, i.created_at,
		       COALESCE(u.first_name || ' ' || u.last_name, '')
		FROM %s i
		LEFT JOIN %s u ON u.id = i.invited_by
		WHERE i.used = FALSE AND i.expires_at > $1
		ORDER BY i.created_at DESC`, r.t.table("invitation_tokens"), r.t.table("users"))
	rows, err := r.t.pool.Query(ctx, q, now)
	if err != nil {
		return nil, mapErr("list invitations", err)
	}
	defer rows.Close()

	var out []repository.Invitation
	for rows.Next() {
		var inv repository.Invitation
		var role string
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Token, &role, &inv.InvitedBy, &inv.Used,
			&inv.ExpiresAt, &inv.CreatedAt, &inv.InvitedByName); err != nil {
			return nil, mapErr("scan invitation", err)
		}
		inv.Role = repository.Role(role)
		out = append(out, inv)
	}
	return out, mapErr("list invitations", rows.Err())
}

func (r *invitationRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND used = FALSE`, r.t.table("invitation_tokens"))
	tag, err := r.t.pool.Exec(ctx, q, id)
	if err != nil {
		return false, mapErr("delete invitation", err)
	}
	return tag.RowsAffected() == 1, nil
}

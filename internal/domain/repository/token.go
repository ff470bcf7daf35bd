package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshToken es la fila persistida de un refresh token. ID es el jti.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create persiste un token nuevo (ID = jti del JWT).
	Create(ctx context.Context, t RefreshToken) error

	// Get busca por jti. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id uuid.UUID) (*RefreshToken, error)

	// Revoke marca el token revocado solo si no lo estaba:
	// UPDATE ... WHERE id = $1 AND revoked = FALSE RETURNING.
	// Con replays concurrentes un solo caller obtiene la fila; el resto
	// recibe ErrNotFound.
	Revoke(ctx context.Context, id uuid.UUID) (*RefreshToken, error)

	// RevokeAllForUser revoca todos los tokens activos del usuario.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

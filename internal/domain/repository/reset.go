package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken habilita un cambio de contraseña sin la actual.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordResetRepository define operaciones sobre tokens de reset.
type PasswordResetRepository interface {
	Create(ctx context.Context, t PasswordResetToken) error

	// GetActiveByToken retorna ErrNotFound si no existe, está usado o expiró.
	GetActiveByToken(ctx context.Context, token string, now time.Time) (*PasswordResetToken, error)

	// Consume marca el token usado si seguía activo. false si otro lo ganó.
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

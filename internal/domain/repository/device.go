package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TrustedDevice es un navegador recordado que puede saltear el 2FA.
// TokenHash es el hash bcrypt del secreto de la cookie.
type TrustedDevice struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TrustedDeviceRepository define operaciones sobre dispositivos de confianza.
type TrustedDeviceRepository interface {
	Create(ctx context.Context, d TrustedDevice) error

	// GetActive busca por id y usuario, no expirado. Retorna ErrNotFound.
	GetActive(ctx context.Context, id, userID uuid.UUID, now time.Time) (*TrustedDevice, error)

	// Delete borra la fila. false si no existía.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// DeleteExpired limpia filas vencidas.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TwoFactorCode es un código numérico de un solo uso enviado por email.
type TwoFactorCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Code      string
	ExpiresAt time.Time
	Used      bool
	Attempts  int
	CreatedAt time.Time
}

// TwoFactorRepository define operaciones sobre códigos 2FA.
type TwoFactorRepository interface {
	// InvalidateActive marca como usados todos los códigos no usados del usuario.
	InvalidateActive(ctx context.Context, userID uuid.UUID) (int, error)

	Create(ctx context.Context, c TwoFactorCode) error

	// GetLatestActive devuelve el código más reciente no usado y no expirado.
	// Retorna ErrNotFound si no hay.
	GetLatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (*TwoFactorCode, error)

	// IncrementAttempts suma un intento solo si el código sigue sin usar y por
	// debajo de maxAttempts, y devuelve la fila actualizada. Retorna
	// ErrNotFound si la condición no se cumple.
	IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int) (*TwoFactorCode, error)

	// MarkUsed consume el código. false si ya estaba usado.
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
}

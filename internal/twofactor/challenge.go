// Package twofactor implementa el desafío de segundo factor por email:
// códigos numéricos de un solo uso con expiración y tope de intentos.
package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
	tokens "github.com/minispace/minispace/internal/security/token"
)

const (
	CodeDigits  = 6
	CodeTTL     = 15 * time.Minute
	MaxAttempts = 3
)

var (
	ErrCodeExpiredOrMissing = errors.New("twofactor: code expired or missing")
	ErrTooManyAttempts      = errors.New("twofactor: too many attempts")
	ErrInvalidCode          = errors.New("twofactor: invalid code")
)

// Challenge opera sobre el repositorio 2FA de un tenant. No guarda estado
// propio: todo el estado vive en las filas de two_factor_codes.
type Challenge struct {
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
}

// New devuelve un Challenge con los valores por defecto.
func New() *Challenge {
	return &Challenge{TTL: CodeTTL, MaxAttempts: MaxAttempts}
}

func (c *Challenge) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// InvalidateActive marca como usados todos los códigos pendientes del usuario.
func (c *Challenge) InvalidateActive(ctx context.Context, repo repository.TwoFactorRepository, userID uuid.UUID) error {
	if _, err := repo.InvalidateActive(ctx, userID); err != nil {
		return fmt.Errorf("twofactor: invalidate: %w", err)
	}
	return nil
}

// Issue genera y persiste un código nuevo con attempts=0. Devuelve el código
// en claro para enviarlo por email; nunca se loguea.
func (c *Challenge) Issue(ctx context.Context, repo repository.TwoFactorRepository, userID uuid.UUID) (string, error) {
	code, err := tokens.GenerateNumericCode(CodeDigits)
	if err != nil {
		return "", err
	}
	now := c.now()
	row := repository.TwoFactorCode{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(c.TTL),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, row); err != nil {
		return "", fmt.Errorf("twofactor: create: %w", err)
	}
	return code, nil
}

// Verify valida code contra el código activo más reciente. El tope de
// intentos se chequea antes de comparar y el intento se cuenta antes de
// comparar: un código incorrecto ya consumió su intento.
func (c *Challenge) Verify(ctx context.Context, repo repository.TwoFactorRepository, userID uuid.UUID, code string) error {
	active, err := repo.GetLatestActive(ctx, userID, c.now())
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrCodeExpiredOrMissing
		}
		return fmt.Errorf("twofactor: load: %w", err)
	}
	if active.Attempts >= c.MaxAttempts {
		return ErrTooManyAttempts
	}

	// Incremento condicional: bajo concurrencia nadie pasa del tope.
	if _, err := repo.IncrementAttempts(ctx, active.ID, c.MaxAttempts); err != nil {
		if repository.IsNotFound(err) {
			return ErrTooManyAttempts
		}
		return fmt.Errorf("twofactor: increment: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(active.Code)) != 1 {
		return ErrInvalidCode
	}

	won, err := repo.MarkUsed(ctx, active.ID)
	if err != nil {
		return fmt.Errorf("twofactor: mark used: %w", err)
	}
	if !won {
		return ErrCodeExpiredOrMissing
	}
	return nil
}

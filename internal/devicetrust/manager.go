// Package devicetrust maneja los dispositivos de confianza: una cookie
// bearer de larga duración que permite saltear el 2FA en un navegador
// conocido. La cookie rota en cada uso.
package devicetrust

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/security/password"
	tokens "github.com/minispace/minispace/internal/security/token"
)

const TTL = 30 * 24 * time.Hour

// Manager emite, valida, rota y revoca tokens de dispositivo.
type Manager struct {
	hasher *password.Hasher
	TTL    time.Duration
	Now    func() time.Time
}

func NewManager(h *password.Hasher) *Manager {
	return &Manager{hasher: h, TTL: TTL}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Issue crea un dispositivo nuevo para el usuario y devuelve el token en claro.
func (m *Manager) Issue(ctx context.Context, repo repository.TrustedDeviceRepository, userID uuid.UUID) (Token, error) {
	secret, err := tokens.GenerateAlphanumeric(tokens.DeviceSecretLength)
	if err != nil {
		return Token{}, err
	}
	hash, err := m.hasher.HashToken(ctx, secret)
	if err != nil {
		return Token{}, fmt.Errorf("devicetrust: hash: %w", err)
	}
	now := m.now()
	d := repository.TrustedDevice{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(m.TTL),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, d); err != nil {
		return Token{}, fmt.Errorf("devicetrust: create: %w", err)
	}
	return Token{ID: d.ID, Secret: secret}, nil
}

// Validate indica si raw es un token vigente del usuario. Cualquier falla
// (formato, id desconocido, hash distinto, expirado, error de storage)
// cuenta como "no confiable"; el motivo solo queda en el log.
func (m *Manager) Validate(ctx context.Context, repo repository.TrustedDeviceRepository, userID uuid.UUID, raw string) (Token, bool) {
	log := logger.From(ctx).With(logger.Component("devicetrust"), logger.Op("Validate"))
	if raw == "" {
		return Token{}, false
	}
	tok, err := ParseToken(raw)
	if err != nil {
		log.Debug("device token malformed")
		return Token{}, false
	}
	d, err := repo.GetActive(ctx, tok.ID, userID, m.now())
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Warn("device lookup failed", logger.DeviceID(tok.ID.String()), logger.Err(err))
		}
		return Token{}, false
	}
	ok, err := m.hasher.VerifyToken(ctx, tok.Secret, d.TokenHash)
	if err != nil || !ok {
		log.Debug("device secret mismatch", logger.DeviceID(tok.ID.String()))
		return Token{}, false
	}
	return tok, true
}

// Consume valida raw y borra su fila. Solo un llamador concurrente gana el
// borrado; los demás ven "no confiable". Es el primer paso de la rotación.
func (m *Manager) Consume(ctx context.Context, repo repository.TrustedDeviceRepository, userID uuid.UUID, raw string) bool {
	tok, ok := m.Validate(ctx, repo, userID, raw)
	if !ok {
		return false
	}
	deleted, err := repo.Delete(ctx, tok.ID)
	if err != nil {
		logger.From(ctx).Warn("device delete failed",
			logger.Component("devicetrust"), logger.DeviceID(tok.ID.String()), logger.Err(err))
		return false
	}
	return deleted
}

// Rotate consume raw y emite un token nuevo. Si raw no es válido devuelve
// ok=false sin emitir nada.
func (m *Manager) Rotate(ctx context.Context, repo repository.TrustedDeviceRepository, userID uuid.UUID, raw string) (Token, bool, error) {
	if !m.Consume(ctx, repo, userID, raw) {
		return Token{}, false, nil
	}
	tok, err := m.Issue(ctx, repo, userID)
	if err != nil {
		return Token{}, true, err
	}
	return tok, true, nil
}

// Revoke borra el dispositivo de raw. Un valor malformado o desconocido es no-op.
func (m *Manager) Revoke(ctx context.Context, repo repository.TrustedDeviceRepository, raw string) {
	tok, err := ParseToken(raw)
	if err != nil {
		return
	}
	if _, err := repo.Delete(ctx, tok.ID); err != nil {
		logger.From(ctx).Warn("device revoke failed",
			logger.Component("devicetrust"), logger.DeviceID(tok.ID.String()), logger.Err(err))
	}
}

package password

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	tokens "github.com/minispace/minispace/internal/security/token"
)

// Costos bcrypt por caso de uso. Las contraseñas de usuarios usan un costo
// alto; los tokens (refresh, device secret) ya tienen alta entropía y se
// hashean en cada refresh/login, así que usan un costo menor.
const (
	PasswordCost = 12
	TokenCost    = 8
)

// MaxPasswordBytes es el límite de bcrypt; más allá se truncaría en silencio.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password: longer than 72 bytes")

// Hasher envuelve bcrypt y limita cuántos hashes corren a la vez, para que
// el trabajo de CPU no acapare los workers del servidor.
type Hasher struct {
	sem          *semaphore.Weighted
	passwordCost int
	tokenCost    int
}

// NewHasher crea un Hasher con los costos de producción.
func NewHasher(concurrency int) *Hasher {
	return NewHasherWithCosts(concurrency, PasswordCost, TokenCost)
}

// NewHasherWithCosts permite bajar los costos (tests).
func NewHasherWithCosts(concurrency, passwordCost, tokenCost int) *Hasher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Hasher{
		sem:          semaphore.NewWeighted(int64(concurrency)),
		passwordCost: passwordCost,
		tokenCost:    tokenCost,
	}
}

// Hash hashea una contraseña de usuario.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	return h.generate(ctx, []byte(plain), h.passwordCost)
}

// Verify compara una contraseña contra su hash. Un hash corrupto cuenta
// como mismatch.
func (h *Hasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	if len(plain) > MaxPasswordBytes {
		return false, nil
	}
	return h.compare(ctx, []byte(plain), hash)
}

// HashToken hashea un token de alta entropía. Los JWT de refresh superan los
// 72 bytes de bcrypt, así que se hashea sha256hex(token) (64 bytes).
func (h *Hasher) HashToken(ctx context.Context, token string) (string, error) {
	return h.generate(ctx, []byte(tokens.SHA256Hex(token)), h.tokenCost)
}

// VerifyToken es el par de HashToken.
func (h *Hasher) VerifyToken(ctx context.Context, token, hash string) (bool, error) {
	return h.compare(ctx, []byte(tokens.SHA256Hex(token)), hash)
}

func (h *Hasher) generate(ctx context.Context, b []byte, cost int) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	out, err := bcrypt.GenerateFromPassword(b, cost)
	if err != nil {
		return "", fmt.Errorf("password: bcrypt: %w", err)
	}
	return string(out), nil
}

func (h *Hasher) compare(ctx context.Context, b []byte, hash string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	// mismatch, hash corto o ilegible: todo cuenta como "no coincide"
	if err := bcrypt.CompareHashAndPassword([]byte(hash), b); err != nil {
		return false, nil
	}
	return true, nil
}

// acquire no toma un slot si el contexto ya terminó.
func (h *Hasher) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.sem.Acquire(ctx, 1)
}

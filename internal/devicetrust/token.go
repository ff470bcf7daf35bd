package devicetrust

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const sep = "."

var ErrMalformedToken = errors.New("devicetrust: malformed token")

// Token es el valor de la cookie de dispositivo: ID para buscar la fila y
// Secret como capacidad bearer (solo se guarda su hash).
type Token struct {
	ID     uuid.UUID
	Secret string
}

// String serializa como "{id}.{secret}".
func (t Token) String() string { return t.ID.String() + sep + t.Secret }

// IsZero indica si el token está vacío.
func (t Token) IsZero() bool { return t.ID == uuid.Nil && t.Secret == "" }

// ParseToken separa en el primer punto. El secreto no puede estar vacío.
func ParseToken(raw string) (Token, error) {
	idPart, secret, ok := strings.Cut(strings.TrimSpace(raw), sep)
	if !ok || secret == "" {
		return Token{}, ErrMalformedToken
	}
	id, err := uuid.Parse(idPart)
	if err != nil || id == uuid.Nil {
		return Token{}, ErrMalformedToken
	}
	return Token{ID: id, Secret: secret}, nil
}

package filecrypt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize es el tamaño del master key y de las claves derivadas (AES-256).
const KeySize = 32

// tenantInfoPrefix es el "info" de HKDF. Cambiarlo invalida todos los
// archivos ya cifrados.
const tenantInfoPrefix = "minispace-tenant-"

var (
	// ErrInvalidMasterKeyLength es un error de configuración: el proceso no
	// debe arrancar con un master key que no sea de exactamente 32 bytes.
	ErrInvalidMasterKeyLength = errors.New("filecrypt: master key must be exactly 32 bytes")
	ErrInvalidKeyMaterial     = errors.New("filecrypt: master key is not valid hex")
)

// Key es una clave AES-256 derivada para un tenant.
type Key [KeySize]byte

// ParseMasterKeyHex decodifica el master key de configuración (64 caracteres hex).
func ParseMasterKeyHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidMasterKeyLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMasterKeyLength, len(b))
	}
	return b, nil
}

// DeriveTenantKey deriva la clave del tenant: HKDF-SHA256, sin salt,
// info = "minispace-tenant-<slug>". Es determinística.
func DeriveTenantKey(master []byte, tenant string) (Key, error) {
	var k Key
	if len(master) != KeySize {
		return k, ErrInvalidMasterKeyLength
	}
	r := hkdf.New(sha256.New, master, nil, []byte(tenantInfoPrefix+tenant))
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return k, fmt.Errorf("filecrypt: hkdf: %w", err)
	}
	return k, nil
}

// Keyring guarda una copia del master key y deriva claves por tenant a pedido.
type Keyring struct {
	master []byte
}

// NewKeyring valida el master key una sola vez (arranque del proceso).
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidMasterKeyLength
	}
	m := make([]byte, KeySize)
	copy(m, master)
	return &Keyring{master: m}, nil
}

// ForTenant devuelve la clave del tenant.
func (r *Keyring) ForTenant(tenant string) (Key, error) {
	return DeriveTenantKey(r.master, tenant)
}

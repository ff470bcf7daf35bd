package filecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	IVSize  = 12 // nonce GCM (96 bits)
	TagSize = 16
)

// ErrDecryptionFailed indica que el tag no autentica: clave equivocada,
// datos corruptos o manipulados. No es lo mismo que "archivo inexistente".
var ErrDecryptionFailed = errors.New("filecrypt: decryption failed (authentication tag mismatch)")

// Sealed es el resultado de Encrypt.
type Sealed struct {
	Ciphertext []byte
	IV         [IVSize]byte
	Tag        [TagSize]byte
}

// Encrypt cifra plaintext con AES-256-GCM y un IV aleatorio nuevo. El tag
// (últimos 16 bytes de la salida de GCM) se separa del ciphertext.
func Encrypt(plaintext []byte, key Key) (Sealed, error) {
	var out Sealed
	aead, err := newGCM(key)
	if err != nil {
		return out, err
	}
	if _, err := io.ReadFull(rand.Reader, out.IV[:]); err != nil {
		return out, fmt.Errorf("filecrypt: iv random: %w", err)
	}
	sealed := aead.Seal(nil, out.IV[:], plaintext, nil)
	n := len(sealed) - TagSize
	out.Ciphertext = sealed[:n:n]
	copy(out.Tag[:], sealed[n:])
	return out, nil
}

// Decrypt recompone ciphertext||tag y abre con GCM. Cualquier fallo de
// autenticación devuelve ErrDecryptionFailed.
func Decrypt(ciphertext []byte, iv [IVSize]byte, tag [TagSize]byte, key Key) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(ciphertext)+TagSize)
	buf = append(buf, ciphertext...)
	buf = append(buf, tag[:]...)
	pt, err := aead.Open(nil, iv[:], buf, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

// DecryptParts acepta IV y tag como slices (tal como vienen de la base) y
// valida sus tamaños antes de abrir.
func DecryptParts(ciphertext, iv, tag []byte, key Key) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("filecrypt: iv must be %d bytes, got %d", IVSize, len(iv))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("filecrypt: tag must be %d bytes, got %d", TagSize, len(tag))
	}
	var i [IVSize]byte
	var t [TagSize]byte
	copy(i[:], iv)
	copy(t[:], tag)
	return Decrypt(ciphertext, i, t, key)
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("filecrypt: aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("filecrypt: cipher.NewGCM: %w", err)
	}
	return aead, nil
}

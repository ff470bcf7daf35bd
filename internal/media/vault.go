// Package media guarda archivos de media y documentos cifrados en disco con
// la clave del tenant. La metadata (IV y tag) vive en la fila de la base;
// el archivo en disco es solo el ciphertext.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/security/filecrypt"
	"github.com/minispace/minispace/internal/tenant"
	"github.com/minispace/minispace/internal/util/atomicwrite"
)

const filePerm fs.FileMode = 0o640

var (
	// ErrNotFound: el archivo no está en disco. Distinto de
	// filecrypt.ErrDecryptionFailed, que indica datos alterados.
	ErrNotFound    = errors.New("media: file not found")
	ErrInvalidPath = errors.New("media: invalid storage path")
)

// Blob referencia un archivo cifrado: ruta relativa al root más IV y tag.
type Blob struct {
	Path string
	IV   [filecrypt.IVSize]byte
	Tag  [filecrypt.TagSize]byte
}

// Vault lee y escribe archivos cifrados bajo root.
type Vault struct {
	root    string
	keys    *filecrypt.Keyring
	metrics *metrics.Metrics
}

// NewVault crea un Vault. m puede ser nil.
func NewVault(root string, keys *filecrypt.Keyring, m *metrics.Metrics) *Vault {
	return &Vault{root: root, keys: keys, metrics: m}
}

// StoragePath arma la ruta relativa "{tenant}/{yyyy}/{mm}/{name}".
func StoragePath(tenantSlug, name string, at time.Time) string {
	return path.Join(tenantSlug, at.Format("2006"), at.Format("01"), path.Base(name))
}

// resolve valida rel y lo une al root sin permitir salir de él.
func (v *Vault) resolve(rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(v.root, clean), nil
}

// tenantKey normaliza el slug antes de derivar: "ACME" y "acme" son el
// mismo tenant y comparten clave.
func (v *Vault) tenantKey(raw string) (string, filecrypt.Key, error) {
	slug, err := tenant.NormalizeSlug(raw)
	if err != nil {
		return "", filecrypt.Key{}, err
	}
	key, err := v.keys.ForTenant(slug)
	if err != nil {
		return "", filecrypt.Key{}, err
	}
	return slug, key, nil
}

// Put cifra plaintext con la clave del tenant y lo escribe en rel.
func (v *Vault) Put(ctx context.Context, tenantSlug, rel string, plaintext []byte) (Blob, error) {
	slug, key, err := v.tenantKey(tenantSlug)
	if err != nil {
		return Blob{}, err
	}
	full, err := v.resolve(rel)
	if err != nil {
		return Blob{}, err
	}
	sealed, err := filecrypt.Encrypt(plaintext, key)
	if err != nil {
		return Blob{}, err
	}
	if err := atomicwrite.WriteFile(full, sealed.Ciphertext, filePerm); err != nil {
		return Blob{}, fmt.Errorf("media: write %s: %w", rel, err)
	}
	logger.From(ctx).Debug("media stored",
		logger.Component("media.vault"), logger.TenantSlug(slug), logger.Path(rel), logger.Count(len(plaintext)))
	return Blob{Path: rel, IV: sealed.IV, Tag: sealed.Tag}, nil
}

// Get lee y descifra b. Devuelve ErrNotFound si falta el archivo y
// filecrypt.ErrDecryptionFailed si no autentica.
func (v *Vault) Get(ctx context.Context, tenantSlug string, b Blob) ([]byte, error) {
	return v.open(ctx, tenantSlug, b.Path, func(ct []byte, key filecrypt.Key) ([]byte, error) {
		return filecrypt.Decrypt(ct, b.IV, b.Tag, key)
	})
}

// GetParts es Get con IV y tag tal como vienen de la base.
func (v *Vault) GetParts(ctx context.Context, tenantSlug, rel string, iv, tag []byte) ([]byte, error) {
	return v.open(ctx, tenantSlug, rel, func(ct []byte, key filecrypt.Key) ([]byte, error) {
		return filecrypt.DecryptParts(ct, iv, tag, key)
	})
}

func (v *Vault) open(ctx context.Context, tenantSlug, rel string, decrypt func([]byte, filecrypt.Key) ([]byte, error)) ([]byte, error) {
	slug, key, err := v.tenantKey(tenantSlug)
	if err != nil {
		return nil, err
	}
	full, err := v.resolve(rel)
	if err != nil {
		return nil, err
	}
	ct, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media: read %s: %w", rel, err)
	}
	pt, err := decrypt(ct, key)
	if err != nil {
		if errors.Is(err, filecrypt.ErrDecryptionFailed) {
			v.metrics.DecryptFailure(slug)
			logger.From(ctx).Error("media integrity check failed",
				logger.Component("media.vault"), logger.TenantSlug(slug), logger.Path(rel))
		}
		return nil, err
	}
	return pt, nil
}

// EncryptInPlace reemplaza el archivo en claro rel por su ciphertext y
// devuelve IV y tag para guardar en la fila.
func (v *Vault) EncryptInPlace(ctx context.Context, tenantSlug, rel string) (Blob, error) {
	full, err := v.resolve(rel)
	if err != nil {
		return Blob{}, err
	}
	pt, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("media: read %s: %w", rel, err)
	}
	return v.Put(ctx, tenantSlug, rel, pt)
}

// Delete borra rel. Un archivo inexistente no es error.
func (v *Vault) Delete(rel string) error {
	full, err := v.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("media: delete %s: %w", rel, err)
	}
	return nil
}

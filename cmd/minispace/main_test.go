package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/media"
	"github.com/minispace/minispace/internal/security/filecrypt"
	"github.com/minispace/minispace/internal/store/memory"
)

var testMaster = strings.Repeat("11", 32)

func testVault(t *testing.T) (*media.Vault, string) {
	t.Helper()
	master, err := filecrypt.ParseMasterKeyHex(testMaster)
	require.NoError(t, err)
	keys, err := filecrypt.NewKeyring(master)
	require.NoError(t, err)
	dir := t.TempDir()
	return media.NewVault(dir, keys, nil), dir
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o640))
}

func TestEncryptExisting(t *testing.T) {
	ctx := context.Background()
	vault, root := testVault(t)

	st := memory.New()
	st.AddTenant("acme", "Crèche Acme")
	st.AddTenant("beta", "Beta")

	photo := repository.PlaintextFile{Kind: repository.FileKindMedia, ID: uuid.New(),
		StoragePath: "acme/2026/01/photo.jpg", ThumbnailPath: "acme/2026/01/thumb_photo.jpg"}
	doc := repository.PlaintextFile{Kind: repository.FileKindDocument, ID: uuid.New(),
		StoragePath: "beta/2026/01/menu.pdf"}
	gone := repository.PlaintextFile{Kind: repository.FileKindDocument, ID: uuid.New(),
		StoragePath: "beta/2026/01/gone.pdf"}
	st.AddFile("garderie_acme", photo)
	st.AddFile("garderie_beta", doc)
	st.AddFile("garderie_beta", gone)
	writeFile(t, root, photo.StoragePath, "jpeg bytes")
	writeFile(t, root, photo.ThumbnailPath, "thumb bytes")
	writeFile(t, root, doc.StoragePath, "pdf bytes")

	// dry-run no toca nada.
	stats, err := encryptExisting(ctx, st, st, vault, encryptOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Files)
	_, ok := st.FileMeta("garderie_acme", photo.ID)
	require.False(t, ok)

	stats, err = encryptExisting(ctx, st, st, vault, encryptOptions{Concurrency: 2})
	require.NoError(t, err)
	require.Equal(t, encryptStats{Tenants: 2, Files: 2, Thumbs: 1, Missing: 1}, stats)

	meta, ok := st.FileMeta("garderie_acme", photo.ID)
	require.True(t, ok)
	require.Len(t, meta.IV, filecrypt.IVSize)
	require.Len(t, meta.ThumbTag, filecrypt.TagSize)

	got, err := vault.GetParts(ctx, "acme", photo.StoragePath, meta.IV, meta.Tag)
	require.NoError(t, err)
	require.Equal(t, "jpeg bytes", string(got))
	got, err = vault.GetParts(ctx, "acme", photo.ThumbnailPath, meta.ThumbIV, meta.ThumbTag)
	require.NoError(t, err)
	require.Equal(t, "thumb bytes", string(got))

	// Con la clave de otro tenant no descifra.
	_, err = vault.GetParts(ctx, "beta", photo.StoragePath, meta.IV, meta.Tag)
	require.ErrorIs(t, err, filecrypt.ErrDecryptionFailed)

	// Segunda corrida: solo queda el archivo faltante.
	stats, err = encryptExisting(ctx, st, st, vault, encryptOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Files)
	require.Equal(t, int64(1), stats.Missing)
}

func TestEncryptExisting_SingleTenant(t *testing.T) {
	ctx := context.Background()
	vault, root := testVault(t)
	st := memory.New()
	st.AddTenant("acme", "")
	st.AddTenant("beta", "")
	a := repository.PlaintextFile{Kind: repository.FileKindDocument, ID: uuid.New(), StoragePath: "acme/a.pdf"}
	b := repository.PlaintextFile{Kind: repository.FileKindDocument, ID: uuid.New(), StoragePath: "beta/b.pdf"}
	st.AddFile("garderie_acme", a)
	st.AddFile("garderie_beta", b)
	writeFile(t, root, a.StoragePath, "a")
	writeFile(t, root, b.StoragePath, "b")

	stats, err := encryptExisting(ctx, st, st, vault, encryptOptions{Tenant: "ACME"})
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Tenants)
	_, ok := st.FileMeta("garderie_beta", b.ID)
	require.False(t, ok)

	_, err = encryptExisting(ctx, st, st, vault, encryptOptions{Tenant: "bad slug"})
	require.Error(t, err)

	stats, err = encryptExisting(ctx, st, st, vault, encryptOptions{Tenant: "ghost"})
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Tenants)
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := run(t, "", "hash-password", "--cost", "4", "Motdepasse1")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Motdepasse1")))

	out, err = run(t, "Secret2024\n", "hash-password", "--cost", "4", "--stdin")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("Secret2024")))

	_, err = run(t, "", "hash-password")
	require.Error(t, err)
}

func setEnvConfig(t *testing.T, mediaDir string) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/minispace")
	t.Setenv("JWT_SECRET", "access-secret-0123456789abcdef-0123456789")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-0123456789abcdef-012345678")
	t.Setenv("ENCRYPTION_MASTER_KEY", testMaster)
	t.Setenv("MEDIA_DIR", mediaDir)
	t.Setenv("MINISPACE_CONFIG", "")
}

func TestCheckConfigCmd(t *testing.T) {
	setEnvConfig(t, t.TempDir())
	out, err := run(t, "", "check-config")
	require.NoError(t, err)
	require.Contains(t, out, "master_key:   ok (32 bytes)")

	t.Setenv("ENCRYPTION_MASTER_KEY", "abcd")
	_, err = run(t, "", "check-config")
	require.ErrorIs(t, err, filecrypt.ErrInvalidMasterKeyLength)
}

func TestDecryptFileCmd(t *testing.T) {
	ctx := context.Background()
	vault, root := testVault(t)
	setEnvConfig(t, root)

	blob, err := vault.Put(ctx, "acme", "acme/2026/02/note.txt", []byte("bonjour"))
	require.NoError(t, err)

	out, err := run(t, "", "decrypt-file", "--tenant", "acme", "--path", blob.Path,
		"--iv", hex.EncodeToString(blob.IV[:]), "--tag", hex.EncodeToString(blob.Tag[:]))
	require.NoError(t, err)
	require.Equal(t, "bonjour", out)

	dst := filepath.Join(t.TempDir(), "note.txt")
	_, err = run(t, "", "decrypt-file", "--tenant", "acme", "--path", blob.Path,
		"--iv", hex.EncodeToString(blob.IV[:]), "--tag", hex.EncodeToString(blob.Tag[:]), "-o", dst)
	require.NoError(t, err)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "bonjour", string(b))

	_, err = run(t, "", "decrypt-file", "--tenant", "other", "--path", blob.Path,
		"--iv", hex.EncodeToString(blob.IV[:]), "--tag", hex.EncodeToString(blob.Tag[:]))
	require.ErrorIs(t, err, filecrypt.ErrDecryptionFailed)

	_, err = run(t, "", "decrypt-file", "--tenant", "acme")
	require.Error(t, err)
}

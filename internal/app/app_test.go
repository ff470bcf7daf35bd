package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/minispace/minispace/internal/auth"
	"github.com/minispace/minispace/internal/config"
	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/store/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Storage.DSN = "postgres://unused"
	c.JWT.Secret = "access-secret-0123456789abcdef-0123456789"
	c.JWT.RefreshSecret = "refresh-secret-0123456789abcdef-012345678"
	c.Security.MasterKey = strings.Repeat("0f", 32)
	c.Security.HashConcurrency = 2
	c.Security.PasswordPolicy.MinLength = 8
	c.Cache.Kind = "memory"
	c.Cache.TenantTTL = "1m"
	c.Cache.Memory.DefaultTTL = "1m"
	c.JWT.AccessTTL = "15m"
	c.JWT.RefreshTTL = "720h"
	c.App.BaseURL = "https://minispace.app"
	c.Media.Dir = t.TempDir()
	require.NoError(t, c.Validate())
	return c
}

func TestNew_WiresServices(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.AddTenant("acme", "Crèche Acme")

	a, err := New(testConfig(t), Deps{Store: st, Directory: st, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer a.Close()

	ref, err := a.Tenants.Resolve(ctx, "ACME")
	require.NoError(t, err)
	require.Equal(t, "garderie_acme", ref.Schema)
	require.Equal(t, "Crèche Acme", ref.DisplayName)

	// Sin SMTP no hay 2FA posible.
	hash, err := password.NewHasherWithCosts(1, 4, 4).Hash(ctx, "Motdepasse1")
	require.NoError(t, err)
	st.PutUser(ref.Schema, repository.User{
		ID: uuid.New(), Email: "ana@acme.test", PasswordHash: hash,
		Role: repository.RoleParent, IsActive: true,
	})
	_, err = a.Auth.Login(ctx, "acme", "ana@acme.test", "Motdepasse1", "")
	require.ErrorIs(t, err, auth.ErrEmailServiceUnavailable)

	blob, err := a.Vault.Put(ctx, "acme", "acme/2026/01/a.bin", []byte("hola"))
	require.NoError(t, err)
	got, err := a.Vault.Get(ctx, "acme", blob)
	require.NoError(t, err)
	require.Equal(t, "hola", string(got))

	require.True(t, a.Cookies.Secure)
	require.Equal(t, "tdt", a.Cookies.DeletionCookie().Name)
}

func TestNew_LoadsBlacklist(t *testing.T) {
	cfg := testConfig(t)
	p := filepath.Join(t.TempDir(), "blacklist.txt")
	require.NoError(t, os.WriteFile(p, []byte("motdepasse1\n"), 0o600))
	cfg.Security.PasswordBlacklistPath = p

	st := memory.New()
	_, err := New(cfg, Deps{Store: st, Directory: st, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	cfg.Security.PasswordBlacklistPath = filepath.Join(t.TempDir(), "missing.txt")
	_, err = New(cfg, Deps{Store: st, Directory: st, Registry: prometheus.NewRegistry()})
	require.Error(t, err)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(testConfig(t), Deps{})
	require.Error(t, err)
	_, err = New(nil, Deps{})
	require.Error(t, err)
}

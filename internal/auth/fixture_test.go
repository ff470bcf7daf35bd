package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/jwt"
	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/store/memory"
	"github.com/minispace/minispace/internal/tenant"
)

const (
	testTenant   = "acme"
	testSchema   = "garderie_acme"
	testEmail    = "ana@acme.test"
	testPassword = "Motdepasse1"
)

type sentMail struct {
	To, Code, URL, Name, Tenant, Role string
}

// fakeSender graba lo enviado. Los err* simulan fallas de SMTP.
type fakeSender struct {
	mu        sync.Mutex
	codes     []sentMail
	invites   []sentMail
	resets    []sentMail
	err2FA    error
	errInvite error
	errReset  error
}

func (f *fakeSender) Send2FACode(_ context.Context, to, code, tenantName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err2FA != nil {
		return f.err2FA
	}
	f.codes = append(f.codes, sentMail{To: to, Code: code, Tenant: tenantName})
	return nil
}

func (f *fakeSender) SendInvitation(_ context.Context, to, url, tenantName, roleLabel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errInvite != nil {
		return f.errInvite
	}
	f.invites = append(f.invites, sentMail{To: to, URL: url, Tenant: tenantName, Role: roleLabel})
	return nil
}

func (f *fakeSender) SendPasswordReset(_ context.Context, to, name, url, tenantName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errReset != nil {
		return f.errReset
	}
	f.resets = append(f.resets, sentMail{To: to, Name: name, URL: url, Tenant: tenantName})
	return nil
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.codes, "no 2fa code was sent")
	return f.codes[len(f.codes)-1].Code
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	mail    *fakeSender
	hasher  *password.Hasher
	codec   *jwt.Codec
	metrics *metrics.Metrics
	user    repository.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(*Deps) {})
}

func newFixtureWith(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	ctx := context.Background()

	hasher := password.NewHasherWithCosts(4, 4, 4)
	store := memory.New()
	store.AddTenant(testTenant, "Crèche Acme")
	store.AddTenant("other", "Other")

	hash, err := hasher.Hash(ctx, testPassword)
	require.NoError(t, err)
	user := repository.User{
		ID:              uuid.New(),
		Email:           testEmail,
		PasswordHash:    hash,
		FirstName:       "Ana",
		LastName:        "Diaz",
		Role:            repository.RoleParent,
		IsActive:        true,
		PreferredLocale: "fr",
	}
	store.PutUser(testSchema, user)

	codec, err := jwt.NewCodec(
		[]byte("access-secret-0123456789abcdef-0123456789"),
		[]byte("refresh-secret-0123456789abcdef-012345678"),
		0, 0,
	)
	require.NoError(t, err)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	mail := &fakeSender{}
	deps := Deps{
		Store:   store,
		Tenants: tenant.NewResolver(store, nil, time.Minute),
		Hasher:  hasher,
		Tokens:  codec,
		Email:   mail,
		Metrics: m,
		Policy:  password.Policy{MinLength: 8, RequireDigit: true},
		BaseURL: "https://minispace.app",
	}
	mutate(&deps)
	svc, err := NewService(deps)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, mail: mail, hasher: hasher, codec: codec, metrics: m, user: user}
}

func (f *fixture) tenantStore(t *testing.T) repository.TenantStore {
	t.Helper()
	ts, err := f.store.ForTenant(testSchema)
	require.NoError(t, err)
	return ts
}

// signIn completa login + 2FA y devuelve la sesión.
func (f *fixture) signIn(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.Login(ctx, testTenant, testEmail, testPassword, "")
	require.NoError(t, err)
	require.Equal(t, StatusTwoFactorRequired, res.Status)
	sess, err := f.svc.Verify2FA(ctx, testTenant, testEmail, f.mail.lastCode(t))
	require.NoError(t, err)
	return sess
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	parts := strings.SplitN(url, "token=", 2)
	require.Len(t, parts, 2, url)
	return parts[1]
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

var errSMTP = errors.New("dial tcp: connection refused")

package pg

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/minispace/minispace/internal/domain/repository"
)

// openTestSchema crea un schema descartable. Requiere MINISPACE_TEST_DSN.
func openTestSchema(t *testing.T) (*Store, repository.TenantStore) {
	t.Helper()
	dsn := os.Getenv("MINISPACE_TEST_DSN")
	if dsn == "" {
		t.Skip("MINISPACE_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, PoolConfig{MaxConns: 8})
	require.NoError(t, err)

	schema := fmt.Sprintf("garderie_test_%d", time.Now().UnixNano())
	require.NoError(t, s.applyTenantMigrations(ctx, schema))
	t.Cleanup(func() {
		_, _ = s.Pool().Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		s.Close()
	})

	ts, err := s.ForTenant(schema)
	require.NoError(t, err)
	return s, ts
}

func createUser(t *testing.T, ts repository.TenantStore, email string) *repository.User {
	t.Helper()
	u, err := ts.Users().Create(context.Background(), repository.CreateUserInput{
		Email: email, PasswordHash: "x", FirstName: "Ana", LastName: "Diaz", Role: repository.RoleEducateur,
	})
	require.NoError(t, err)
	return u
}

func TestForTenant_RejectsInvalidSchema(t *testing.T) {
	s := &Store{}
	_, err := s.ForTenant(`public"; --`)
	require.ErrorIs(t, err, repository.ErrInvalidSchema)
}

func TestPG_UsersAndConflict(t *testing.T) {
	_, ts := openTestSchema(t)
	ctx := context.Background()

	u := createUser(t, ts, "ana@acme.fr")
	require.Equal(t, repository.RoleEducateur, u.Role)
	require.True(t, u.IsActive)

	got, err := ts.Users().GetByEmail(ctx, "ANA@acme.fr")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = ts.Users().Create(ctx, repository.CreateUserInput{Email: "ana@acme.fr", PasswordHash: "y", Role: repository.RoleParent})
	require.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, ts.Users().UpdatePassword(ctx, u.ID, "new", true))
	got, _ = ts.Users().GetByID(ctx, u.ID)
	require.Equal(t, "new", got.PasswordHash)
	require.True(t, got.ForcePasswordChange)
}

func TestPG_RefreshRevokeSingleWinner(t *testing.T) {
	_, ts := openTestSchema(t)
	ctx := context.Background()
	u := createUser(t, ts, "rt@acme.fr")

	id := uuid.New()
	require.NoError(t, ts.RefreshTokens().Create(ctx, repository.RefreshToken{
		ID: id, UserID: u.ID, TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour),
	}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ts.RefreshTokens().Revoke(ctx, id); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)

	n, err := ts.RefreshTokens().RevokeAllForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestPG_TwoFactorAttemptsCap(t *testing.T) {
	_, ts := openTestSchema(t)
	ctx := context.Background()
	u := createUser(t, ts, "mfa@acme.fr")
	now := time.Now()

	c := repository.TwoFactorCode{ID: uuid.New(), UserID: u.ID, Code: "123456", ExpiresAt: now.Add(15 * time.Minute)}
	require.NoError(t, ts.TwoFactorCodes().Create(ctx, c))

	for i := 1; i <= 3; i++ {
		got, err := ts.TwoFactorCodes().IncrementAttempts(ctx, c.ID, 3)
		require.NoError(t, err)
		require.Equal(t, i, got.Attempts)
	}
	_, err := ts.TwoFactorCodes().IncrementAttempts(ctx, c.ID, 3)
	require.ErrorIs(t, err, repository.ErrNotFound)

	won, err := ts.TwoFactorCodes().MarkUsed(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, won)
	won, _ = ts.TwoFactorCodes().MarkUsed(ctx, c.ID)
	require.False(t, won)
}

func TestPG_InvitationAccept(t *testing.T) {
	_, ts := openTestSchema(t)
	ctx := context.Background()
	admin := createUser(t, ts, "admin@acme.fr")
	now := time.Now()

	inv := repository.Invitation{
		ID: uuid.New(), Email: "new@acme.fr", Token: "tok-" + uuid.NewString(),
		Role: repository.RoleParent, InvitedBy: &admin.ID, ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, ts.Invitations().Create(ctx, inv))

	pending, err := ts.Invitations().ListPending(ctx, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Ana Diaz", pending[0].InvitedByName)

	u, err := ts.Invitations().Accept(ctx, inv.ID, now, repository.CreateUserInput{
		Email: inv.Email, PasswordHash: "h", FirstName: "Nina", LastName: "Roy", Role: inv.Role,
	})
	require.NoError(t, err)
	require.Equal(t, repository.RoleParent, u.Role)

	_, err = ts.Invitations().Accept(ctx, inv.ID, now, repository.CreateUserInput{Email: "other@acme.fr", PasswordHash: "h", Role: inv.Role})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPG_ProvisionTenantIsIdempotent(t *testing.T) {
	s, _ := openTestSchema(t)
	ctx := context.Background()
	slug := fmt.Sprintf("prov-%d", time.Now().UnixNano())

	schema, err := s.ProvisionTenant(ctx, slug)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.Pool().Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
	})
	_, err = s.ProvisionTenant(ctx, slug)
	require.NoError(t, err)

	ok, err := s.Directory().SchemaExists(ctx, schema)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.ProvisionTenant(ctx, "Not A Slug")
	require.Error(t, err)
}

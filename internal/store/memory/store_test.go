package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/minispace/minispace/internal/domain/repository"
)

const schema = "garderie_acme"

func newTenant(t *testing.T) repository.TenantStore {
	t.Helper()
	s := New()
	s.AddTenant("acme", "Crèche Acme")
	ts, err := s.ForTenant(schema)
	require.NoError(t, err)
	return ts
}

func TestForTenant_RejectsInvalidSchema(t *testing.T) {
	_, err := New().ForTenant(`garderie_x"; DROP TABLE users; --`)
	require.ErrorIs(t, err, repository.ErrInvalidSchema)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddTenant("petits-loups", "Les Petits Loups")

	ok, err := s.SchemaExists(ctx, "garderie_petits_loups")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = s.SchemaExists(ctx, "garderie_nope")
	require.False(t, ok)

	name, err := s.DisplayName(ctx, "petits-loups")
	require.NoError(t, err)
	require.Equal(t, "Les Petits Loups", name)

	_, err = s.DisplayName(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRefreshRevoke_SingleWinner(t *testing.T) {
	ctx := context.Background()
	ts := newTenant(t)
	id := uuid.New()
	require.NoError(t, ts.RefreshTokens().Create(ctx, repository.RefreshToken{
		ID: id, UserID: uuid.New(), TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour),
	}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
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
}

func TestTwoFactor_IncrementCapAndLatest(t *testing.T) {
	ctx := context.Background()
	ts := newTenant(t)
	uid := uuid.New()
	now := time.Now()
	repo := ts.TwoFactorCodes()

	first := repository.TwoFactorCode{ID: uuid.New(), UserID: uid, Code: "111111", ExpiresAt: now.Add(time.Minute)}
	second := repository.TwoFactorCode{ID: uuid.New(), UserID: uid, Code: "222222", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	latest, err := repo.GetLatestActive(ctx, uid, now)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	for i := 1; i <= 3; i++ {
		c, err := repo.IncrementAttempts(ctx, second.ID, 3)
		require.NoError(t, err)
		require.Equal(t, i, c.Attempts)
	}
	_, err = repo.IncrementAttempts(ctx, second.ID, 3)
	require.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repo.InvalidateActive(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = repo.GetLatestActive(ctx, uid, now)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvitationAccept_ConflictKeepsInvitation(t *testing.T) {
	ctx := context.Background()
	ts := newTenant(t)
	now := time.Now()

	_, err := ts.Users().Create(ctx, repository.CreateUserInput{Email: "dup@acme.fr", Role: repository.RoleParent})
	require.NoError(t, err)

	inv := repository.Invitation{ID: uuid.New(), Email: "dup@acme.fr", Token: "tok", Role: repository.RoleParent, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, ts.Invitations().Create(ctx, inv))

	_, err = ts.Invitations().Accept(ctx, inv.ID, now, repository.CreateUserInput{Email: "DUP@acme.fr", Role: repository.RoleParent})
	require.ErrorIs(t, err, repository.ErrConflict)

	still, err := ts.Invitations().GetActiveByToken(ctx, "tok", now)
	require.NoError(t, err)
	require.False(t, still.Used)
}

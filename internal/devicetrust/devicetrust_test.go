package devicetrust

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/store/memory"
)

func newManager(t *testing.T) (*Manager, repository.TrustedDeviceRepository) {
	t.Helper()
	s := memory.New()
	s.AddTenant("acme", "")
	ts, err := s.ForTenant("garderie_acme")
	require.NoError(t, err)
	h := password.NewHasherWithCosts(4, 4, 4)
	return NewManager(h), ts.TrustedDevices()
}

func TestParseToken(t *testing.T) {
	id := uuid.New()
	tok, err := ParseToken(id.String() + ".abc.def")
	require.NoError(t, err)
	require.Equal(t, id, tok.ID)
	require.Equal(t, "abc.def", tok.Secret)
	require.Equal(t, id.String()+".abc.def", tok.String())

	for _, raw := range []string{"", "nodot", id.String() + ".", "not-a-uuid.secret", uuid.Nil.String() + ".x"} {
		_, err := ParseToken(raw)
		require.ErrorIs(t, err, ErrMalformedToken, raw)
	}
}

func TestIssueValidate(t *testing.T) {
	ctx := context.Background()
	m, repo := newManager(t)
	uid := uuid.New()

	tok, err := m.Issue(ctx, repo, uid)
	require.NoError(t, err)
	require.Len(t, tok.Secret, 48)

	got, ok := m.Validate(ctx, repo, uid, tok.String())
	require.True(t, ok)
	require.Equal(t, tok.ID, got.ID)

	// Otro usuario, secreto alterado, id inexistente, basura: todo "no confiable".
	_, ok = m.Validate(ctx, repo, uuid.New(), tok.String())
	require.False(t, ok)
	_, ok = m.Validate(ctx, repo, uid, tok.ID.String()+".wrong")
	require.False(t, ok)
	_, ok = m.Validate(ctx, repo, uid, uuid.NewString()+"."+tok.Secret)
	require.False(t, ok)
	_, ok = m.Validate(ctx, repo, uid, "garbage")
	require.False(t, ok)
	_, ok = m.Validate(ctx, repo, uid, "")
	require.False(t, ok)
}

func TestValidate_Expired(t *testing.T) {
	ctx := context.Background()
	m, repo := newManager(t)
	now := time.Now()
	m.Now = func() time.Time { return now }
	uid := uuid.New()

	tok, err := m.Issue(ctx, repo, uid)
	require.NoError(t, err)

	m.Now = func() time.Time { return now.Add(TTL + time.Minute) }
	_, ok := m.Validate(ctx, repo, uid, tok.String())
	require.False(t, ok)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	m, repo := newManager(t)
	uid := uuid.New()

	old, err := m.Issue(ctx, repo, uid)
	require.NoError(t, err)

	next, ok, err := m.Rotate(ctx, repo, uid, old.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, old.ID, next.ID)

	_, ok = m.Validate(ctx, repo, uid, old.String())
	require.False(t, ok, "old token must not survive rotation")
	_, ok = m.Validate(ctx, repo, uid, next.String())
	require.True(t, ok)

	_, ok, err = m.Rotate(ctx, repo, uid, old.String())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConsume_SingleWinner(t *testing.T) {
	ctx := context.Background()
	m, repo := newManager(t)
	uid := uuid.New()

	tok, err := m.Issue(ctx, repo, uid)
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Consume(ctx, repo, uid, tok.String()) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)
}

func TestRevoke_Tolerant(t *testing.T) {
	ctx := context.Background()
	m, repo := newManager(t)
	uid := uuid.New()

	tok, err := m.Issue(ctx, repo, uid)
	require.NoError(t, err)

	m.Revoke(ctx, repo, "garbage")
	m.Revoke(ctx, repo, uuid.NewString()+".x")
	m.Revoke(ctx, repo, tok.String())
	m.Revoke(ctx, repo, tok.String())

	_, ok := m.Validate(ctx, repo, uid, tok.String())
	require.False(t, ok)
}

func TestCookie(t *testing.T) {
	cfg := CookieConfig{Secure: true, Domain: "acme.minispace.app"}
	tok := Token{ID: uuid.New(), Secret: "s3cr3t"}

	ck := cfg.Cookie(tok)
	require.Equal(t, "tdt", ck.Name)
	require.Equal(t, tok.String(), ck.Value)
	require.True(t, ck.HttpOnly)
	require.True(t, ck.Secure)
	require.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	require.Equal(t, 2592000, ck.MaxAge)
	require.Equal(t, "/", ck.Path)

	del := cfg.DeletionCookie()
	require.Equal(t, -1, del.MaxAge)
	require.Empty(t, del.Value)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	require.Empty(t, cfg.FromRequest(req))
	req.AddCookie(&http.Cookie{Name: "tdt", Value: tok.String()})
	require.Equal(t, tok.String(), cfg.FromRequest(req))
	require.True(t, strings.Contains(ck.String(), "HttpOnly"))
}

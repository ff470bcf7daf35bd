package password

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHasher() *Hasher {
	return NewHasherWithCosts(4, bcrypt.MinCost, bcrypt.MinCost)
}

func TestHasher_HashVerify(t *testing.T) {
	ctx := context.Background()
	h := testHasher()

	hash, err := h.Hash(ctx, "Soleil2024!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ok, err := h.Verify(ctx, "Soleil2024!", hash)
	if err != nil || !ok {
		t.Fatalf("Verify good: ok=%v err=%v", ok, err)
	}
	ok, _ = h.Verify(ctx, "soleil2024!", hash)
	if ok {
		t.Fatal("Verify accepted wrong password")
	}
	ok, _ = h.Verify(ctx, "x", "not-a-bcrypt-hash")
	if ok {
		t.Fatal("Verify accepted garbage hash")
	}
}

func TestHasher_RejectsLongPassword(t *testing.T) {
	h := testHasher()
	if _, err := h.Hash(context.Background(), strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestHasher_TokenLongerThanBcryptLimit(t *testing.T) {
	ctx := context.Background()
	h := testHasher()
	long := strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 10)

	hash, err := h.HashToken(ctx, long)
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if ok, _ := h.VerifyToken(ctx, long, hash); !ok {
		t.Fatal("VerifyToken rejected the original token")
	}
	// mismo prefijo de 72 bytes, distinto final
	if ok, _ := h.VerifyToken(ctx, long+"x", hash); ok {
		t.Fatal("VerifyToken accepted a different token")
	}
}

func TestHasher_ProductionCosts(t *testing.T) {
	h := NewHasher(1)
	if h.passwordCost != PasswordCost || h.tokenCost != TokenCost {
		t.Fatalf("unexpected costs %d/%d", h.passwordCost, h.tokenCost)
	}
}

func TestHasher_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	h := NewHasherWithCosts(2, bcrypt.MinCost, bcrypt.MinCost)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Hash(ctx, "concurrent"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Hash: %v", err)
	}
}

func TestHasher_CanceledContext(t *testing.T) {
	h := NewHasherWithCosts(1, bcrypt.MinCost, bcrypt.MinCost)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPolicy_Check(t *testing.T) {
	p := Policy{MinLength: 8, RequireDigit: true, Blacklist: NewBlacklist("password1")}

	if err := p.Check("abc"); err == nil {
		t.Fatal("short password accepted")
	}
	err := p.Check("Password1")
	var pe *PolicyError
	if !errors.As(err, &pe) || !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	if len(pe.Reasons) != 1 || pe.Reasons[0] != "blacklisted" {
		t.Fatalf("reasons = %v", pe.Reasons)
	}
	if err := p.Check("Creche2024"); err != nil {
		t.Fatalf("good password rejected: %v", err)
	}
}

func TestLoadBlacklist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bl.txt")
	if err := os.WriteFile(path, []byte("# comment\nAzerty123\n\nmotdepasse\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bl, err := LoadBlacklist(path)
	if err != nil {
		t.Fatal(err)
	}
	if bl.Len() != 2 || !bl.Contains("azerty123") || !bl.Contains(" MotDePasse ") {
		t.Fatalf("unexpected blacklist content (len=%d)", bl.Len())
	}
	empty, err := LoadBlacklist("")
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty path: %v", err)
	}
}

package filecrypt

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func zeroMaster() []byte { return make([]byte, KeySize) }

func TestDeriveTenantKey_DeterministicAndSeparated(t *testing.T) {
	t.Parallel()
	m := zeroMaster()

	a1, err := DeriveTenantKey(m, "a")
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	a2, _ := DeriveTenantKey(m, "a")
	b, _ := DeriveTenantKey(m, "b")

	if a1 != a2 {
		t.Fatalf("derivation not deterministic")
	}
	if a1 == b {
		t.Fatalf("tenants a and b share a key")
	}
}

func TestDeriveTenantKey_RejectsBadMasterLength(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := DeriveTenantKey(make([]byte, n), "acme"); !errors.Is(err, ErrInvalidMasterKeyLength) {
			t.Fatalf("len %d: expected ErrInvalidMasterKeyLength, got %v", n, err)
		}
	}
	if _, err := NewKeyring(make([]byte, 10)); !errors.Is(err, ErrInvalidMasterKeyLength) {
		t.Fatalf("NewKeyring: expected ErrInvalidMasterKeyLength, got %v", err)
	}
}

func TestParseMasterKeyHex(t *testing.T) {
	t.Parallel()
	good := strings.Repeat("ab", 32)
	k, err := ParseMasterKeyHex(good)
	if err != nil || len(k) != KeySize {
		t.Fatalf("good key: len=%d err=%v", len(k), err)
	}
	if _, err := ParseMasterKeyHex(strings.Repeat("ab", 16)); !errors.Is(err, ErrInvalidMasterKeyLength) {
		t.Fatalf("short key: %v", err)
	}
	if _, err := ParseMasterKeyHex(strings.Repeat("zz", 32)); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("bad hex: %v", err)
	}
	if _, err := ParseMasterKeyHex(""); !errors.Is(err, ErrInvalidMasterKeyLength) {
		t.Fatalf("empty key: %v", err)
	}
}

func TestEncryptDecrypt_AcmeScenario(t *testing.T) {
	t.Parallel()
	ring, err := NewKeyring(zeroMaster())
	if err != nil {
		t.Fatal(err)
	}
	k1, _ := ring.ForTenant("acme")
	k2, _ := ring.ForTenant("acme")
	if k1 != k2 {
		t.Fatalf("keyring derivation not deterministic")
	}

	s, err := Encrypt([]byte("hello"), k1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(s.Ciphertext, []byte("hello")) {
		t.Fatalf("ciphertext equals plaintext")
	}
	if len(s.Ciphertext) != len("hello") {
		t.Fatalf("ciphertext len %d, want %d (tag is stored apart)", len(s.Ciphertext), len("hello"))
	}
	pt, err := Decrypt(s.Ciphertext, s.IV, s.Tag, k1)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q", pt)
	}
}

func TestEncryptDecrypt_RoundTripSizes(t *testing.T) {
	t.Parallel()
	k, _ := DeriveTenantKey(zeroMaster(), "creche-soleil")
	for _, n := range []int{0, 1, 15, 16, 17, 4096, 1 << 16} {
		p := bytes.Repeat([]byte{byte(n)}, n)
		s, err := Encrypt(p, k)
		if err != nil {
			t.Fatalf("n=%d encrypt: %v", n, err)
		}
		got, err := Decrypt(s.Ciphertext, s.IV, s.Tag, k)
		if err != nil {
			t.Fatalf("n=%d decrypt: %v", n, err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("n=%d round trip mismatch", n)
		}
	}
}

func TestEncrypt_FreshIVEachCall(t *testing.T) {
	t.Parallel()
	k, _ := DeriveTenantKey(zeroMaster(), "acme")
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		s, err := Encrypt([]byte("same"), k)
		if err != nil {
			t.Fatal(err)
		}
		iv := hex.EncodeToString(s.IV[:])
		if seen[iv] {
			t.Fatalf("IV reused: %s", iv)
		}
		seen[iv] = true
	}
}

func TestDecrypt_EveryBitFlipFails(t *testing.T) {
	t.Parallel()
	k, _ := DeriveTenantKey(zeroMaster(), "acme")
	s, err := Encrypt([]byte("photo bytes"), k)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < len(s.Ciphertext)*8; i++ {
		ct := append([]byte(nil), s.Ciphertext...)
		ct[i/8] ^= 1 << (i % 8)
		if _, err := Decrypt(ct, s.IV, s.Tag, k); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("ciphertext bit %d: expected ErrDecryptionFailed, got %v", i, err)
		}
	}
	for i := 0; i < TagSize*8; i++ {
		tag := s.Tag
		tag[i/8] ^= 1 << (i % 8)
		if _, err := Decrypt(s.Ciphertext, s.IV, tag, k); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("tag bit %d: expected ErrDecryptionFailed, got %v", i, err)
		}
	}
}

func TestDecrypt_WrongTenantKeyFails(t *testing.T) {
	t.Parallel()
	ka, _ := DeriveTenantKey(zeroMaster(), "a")
	kb, _ := DeriveTenantKey(zeroMaster(), "b")
	s, _ := Encrypt([]byte("secret"), ka)
	if _, err := Decrypt(s.Ciphertext, s.IV, s.Tag, kb); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptParts_ValidatesSizes(t *testing.T) {
	t.Parallel()
	k, _ := DeriveTenantKey(zeroMaster(), "acme")
	s, _ := Encrypt([]byte("x"), k)
	if _, err := DecryptParts(s.Ciphertext, s.IV[:11], s.Tag[:], k); err == nil {
		t.Fatal("expected error for short iv")
	}
	if _, err := DecryptParts(s.Ciphertext, s.IV[:], s.Tag[:8], k); err == nil {
		t.Fatal("expected error for short tag")
	}
	pt, err := DecryptParts(s.Ciphertext, s.IV[:], s.Tag[:], k)
	if err != nil || string(pt) != "x" {
		t.Fatalf("DecryptParts: %q %v", pt, err)
	}
}

package tenant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minispace/minispace/internal/cache"
	"github.com/minispace/minispace/internal/domain/repository"
)

func TestSchemaName(t *testing.T) {
	cases := []struct {
		in, want string
		err      bool
	}{
		{"acme", "garderie_acme", false},
		{"Petits-Loups", "garderie_petits_loups", false},
		{" creche42 ", "garderie_creche42", false},
		{"", "", true},
		{"-lead", "", true},
		{"a;drop", "", true},
		{`x"y`, "", true},
	}
	for _, c := range cases {
		got, err := SchemaName(c.in)
		if c.err {
			if !errors.Is(err, ErrInvalidSlug) {
				t.Fatalf("SchemaName(%q): expected ErrInvalidSlug, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("SchemaName(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
		if !ValidSchema(got) {
			t.Fatalf("ValidSchema(%q) = false", got)
		}
	}
	if ValidSchema("public") || ValidSchema(`garderie_a"b`) {
		t.Fatal("ValidSchema accepted a foreign schema")
	}
}

func TestSchemaName_FitsPostgresIdentifier(t *testing.T) {
	longest := strings.Repeat("a", MaxSlugLength)
	schema, err := SchemaName(longest)
	if err != nil {
		t.Fatalf("SchemaName(%d chars): %v", MaxSlugLength, err)
	}
	if len(schema) != 63 || !ValidSchema(schema) {
		t.Fatalf("schema %q has %d bytes, want 63 and valid", schema, len(schema))
	}
	if _, err := SchemaName(longest + "a"); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("slug of %d chars accepted: %v", MaxSlugLength+1, err)
	}
	if ValidSchema(SchemaPrefix + longest + "a") {
		t.Fatal("ValidSchema accepted a 64-byte identifier")
	}
}

type fakeDir struct {
	schemas map[string]bool
	names   map[string]string
	calls   int32
}

func (f *fakeDir) SchemaExists(_ context.Context, schema string) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(20 * time.Millisecond)
	return f.schemas[schema], nil
}

func (f *fakeDir) DisplayName(_ context.Context, slug string) (string, error) {
	if n, ok := f.names[slug]; ok {
		return n, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeDir) ListSlugs(context.Context) ([]string, error) { return nil, nil }

func TestResolver(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDir{
		schemas: map[string]bool{"garderie_acme": true, "garderie_bare": true},
		names:   map[string]string{"acme": "Crèche Acme"},
	}
	r := NewResolver(dir, cache.NewMemory(time.Minute), time.Minute)

	ref, err := r.Resolve(ctx, "ACME")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Schema != "garderie_acme" || ref.DisplayName != "Crèche Acme" {
		t.Fatalf("unexpected ref %+v", ref)
	}

	// sin fila en garderies: el nombre cae al slug
	ref, err = r.Resolve(ctx, "bare")
	if err != nil || ref.DisplayName != "bare" {
		t.Fatalf("bare: %+v %v", ref, err)
	}

	if _, err := r.Resolve(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ghost: expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(ctx, "bad slug"); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("bad slug: expected ErrInvalidSlug, got %v", err)
	}

	before := atomic.LoadInt32(&dir.calls)
	if _, err := r.Resolve(ctx, "acme"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&dir.calls) != before {
		t.Fatal("cached tenant hit the directory again")
	}
}

func TestResolver_CoalescesConcurrentLookups(t *testing.T) {
	dir := &fakeDir{schemas: map[string]bool{"garderie_acme": true}}
	r := NewResolver(dir, nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "acme"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&dir.calls); n >= 10 {
		t.Fatalf("expected coalesced lookups, got %d directory calls", n)
	}
}

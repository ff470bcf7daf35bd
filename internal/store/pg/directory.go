package pg

import (
	"context"

	"github.com/minispace/minispace/internal/domain/repository"
)

// Directory implementa repository.TenantDirectory sobre el catálogo de
// Postgres y la tabla public.garderies.
type Directory struct{ s *Store }

var _ repository.TenantDirectory = (*Directory)(nil)

func (s *Store) Directory() *Directory { return &Directory{s: s} }

func (d *Directory) SchemaExists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := d.s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, schema).Scan(&exists)
	if err != nil {
		return false, mapErr("schema exists", err)
	}
	return exists, nil
}

func (d *Directory) DisplayName(ctx context.Context, slug string) (string, error) {
	var name string
	err := d.s.pool.QueryRow(ctx, `SELECT name FROM public.garderies WHERE slug = $1`, slug).Scan(&name)
	if err != nil {
		return "", mapErr("garderie name", err)
	}
	return name, nil
}

func (d *Directory) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := d.s.pool.Query(ctx, `SELECT slug FROM public.garderies ORDER BY slug`)
	if err != nil {
		return nil, mapErr("list garderies", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, mapErr("scan garderie", err)
		}
		out = append(out, slug)
	}
	return out, mapErr("list garderies", rows.Err())
}

// Package migrations embeds the SQL for the identity tables of a tenant schema.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TenantFS contains the tenant migrations for per-tenant schemas.
//
//go:embed tenant/*.sql
var TenantFS embed.FS

// TenantDir is the directory within TenantFS where migrations live.
const TenantDir = "tenant"

// schemaPlaceholder is replaced by the quoted schema identifier.
const schemaPlaceholder = "__SCHEMA__"

// TenantUp returns every *.up.sql file, in order, with the schema placeholder
// replaced by the quoted identifier.
func TenantUp(schema string) ([]string, error) {
	entries, err := fs.ReadDir(TenantFS, TenantDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ident := pgx.Identifier{schema}.Sanitize()
	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(TenantFS, TenantDir+"/"+n)
		if err != nil {
			return nil, fmt.Errorf("migrations: read %s: %w", n, err)
		}
		out = append(out, strings.ReplaceAll(string(b), schemaPlaceholder, ident))
	}
	return out, nil
}

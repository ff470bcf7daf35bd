package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/tenant"
	migrations "github.com/minispace/minispace/migrations/postgres"
)

// ProvisionTenant crea (o completa) el schema del tenant aplicando las
// migraciones embebidas en una sola transacción. Es idempotente.
func (s *Store) ProvisionTenant(ctx context.Context, slug string) (string, error) {
	schema, err := tenant.SchemaName(slug)
	if err != nil {
		return "", err
	}
	return schema, s.applyTenantMigrations(ctx, schema)
}

func (s *Store) applyTenantMigrations(ctx context.Context, schema string) error {
	stmts, err := migrations.TenantUp(schema)
	if err != nil {
		return err
	}
	log := logger.From(ctx).With(logger.Layer("store"), logger.Component("pg.provision"), logger.String("schema", schema))

	start := time.Now()
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i, sql := range stmts {
			if _, err := tx.Exec(ctx, sql); err != nil {
				return fmt.Errorf("pg: migration %d on %s: %w", i+1, schema, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("tenant schema migrated", logger.Count(len(stmts)), logger.Duration(time.Since(start)))
	return nil
}

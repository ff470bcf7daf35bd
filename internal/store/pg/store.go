// Package pg implementa repository.CredentialStore sobre PostgreSQL (pgx/v5).
//
// Cada garderie vive en su propio schema ("garderie_<slug>"). Los nombres de
// tabla se arman con pgx.Identifier{schema, tabla}.Sanitize() después de
// revalidar el schema; nunca se interpola input sin validar.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/tenant"
)

// PoolConfig ajusta el pool. Ceros = defaults de pgxpool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

var _ repository.CredentialStore = (*Store)(nil)

// New abre el pool y hace un ping inicial.
func New(ctx context.Context, dsn string, cfg PoolConfig) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	logger.L().Info("pg pool ready",
		logger.Layer("store"),
		logger.Component("pg"),
		logger.Int("max_conns", int(pcfg.MaxConns)),
	)
	return &Store{pool: pool}, nil
}

// NewFromPool envuelve un pool existente (tests de integración).
func NewFromPool(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Pool expone el pool interno (migraciones, CLI).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// ForTenant devuelve los repositorios del schema.
func (s *Store) ForTenant(schema string) (repository.TenantStore, error) {
	if !tenant.ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidSchema, schema)
	}
	return &tenantStore{pool: s.pool, schema: schema}, nil
}

// querier lo cumplen *pgxpool.Pool y pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type tenantStore struct {
	pool   *pgxpool.Pool
	schema string
}

// table devuelve "schema"."name" ya escapado.
func (t *tenantStore) table(name string) string {
	return pgx.Identifier{t.schema, name}.Sanitize()
}

func (t *tenantStore) Users() repository.UserRepository { return &userRepo{t: t, q: t.pool} }
func (t *tenantStore) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshRepo{t: t}
}
func (t *tenantStore) TwoFactorCodes() repository.TwoFactorRepository { return &twoFactorRepo{t: t} }
func (t *tenantStore) TrustedDevices() repository.TrustedDeviceRepository {
	return &deviceRepo{t: t}
}
func (t *tenantStore) Invitations() repository.InvitationRepository {
	return &invitationRepo{t: t}
}
func (t *tenantStore) PasswordResets() repository.PasswordResetRepository {
	return &resetRepo{t: t}
}
func (t *tenantStore) Files() repository.EncryptedFileRepository { return &fileRepo{t: t} }

// mapErr traduce errores de pgx a errores de dominio.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("pg: %s: %w", op, repository.ErrConflict)
	}
	return fmt.Errorf("pg: %s: %w", op, err)
}

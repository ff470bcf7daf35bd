package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/minispace/minispace/internal/cache"
	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/observability/logger"
)

// ErrNotFound: el schema del tenant no existe.
var ErrNotFound = errors.New("tenant: not found")

// Ref es un tenant ya validado y resuelto. Schema es seguro para usar como
// identificador SQL (pasó por SchemaName).
type Ref struct {
	Slug        string
	Schema      string
	DisplayName string
}

// Resolver valida slugs y confirma que el tenant existe. Los aciertos se
// cachean; las búsquedas concurrentes del mismo slug se colapsan en una.
type Resolver struct {
	dir   repository.TenantDirectory
	cache cache.Client
	ttl   time.Duration
	sf    singleflight.Group
}

// NewResolver crea un Resolver. cache puede ser nil (sin cache).
func NewResolver(dir repository.TenantDirectory, c cache.Client, ttl time.Duration) *Resolver {
	return &Resolver{dir: dir, cache: c, ttl: ttl}
}

func cacheKey(slug string) string { return "tenant:" + slug }

// Resolve devuelve el Ref del tenant. ErrInvalidSlug si el slug no es
// válido; ErrNotFound si el schema no existe.
func (r *Resolver) Resolve(ctx context.Context, slug string) (Ref, error) {
	s, err := NormalizeSlug(slug)
	if err != nil {
		return Ref{}, err
	}
	schema, _ := SchemaName(s)
	ref := Ref{Slug: s, Schema: schema}

	if r.cache != nil {
		if name, err := r.cache.Get(ctx, cacheKey(s)); err == nil {
			ref.DisplayName = name
			return ref, nil
		} else if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("tenant cache get failed",
				logger.Layer("tenant"), logger.TenantSlug(s), logger.Err(err))
		}
	}

	v, err, _ := r.sf.Do(s, func() (any, error) {
		return r.lookup(ctx, s, schema)
	})
	if err != nil {
		return Ref{}, err
	}
	ref.DisplayName = v.(string)
	return ref, nil
}

func (r *Resolver) lookup(ctx context.Context, slug, schema string) (string, error) {
	ok, err := r.dir.SchemaExists(ctx, schema)
	if err != nil {
		return "", fmt.Errorf("tenant: schema lookup: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}

	name, err := r.dir.DisplayName(ctx, slug)
	switch {
	case err == nil && name != "":
	case err == nil, repository.IsNotFound(err):
		name = slug
	default:
		return "", fmt.Errorf("tenant: display name: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey(slug), name, r.ttl); err != nil {
			logger.From(ctx).Warn("tenant cache set failed",
				logger.Layer("tenant"), logger.TenantSlug(slug), logger.Err(err))
		}
	}
	return name, nil
}

// Invalidate borra el tenant del cache (renombre o baja).
func (r *Resolver) Invalidate(ctx context.Context, slug string) error {
	if r.cache == nil {
		return nil
	}
	s, err := NormalizeSlug(slug)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey(s))
}

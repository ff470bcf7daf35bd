package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/media"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/tenant"
)

const defaultEncryptConcurrency = 4

type encryptOptions struct {
	Tenant      string
	DryRun      bool
	Concurrency int
}

type encryptStats struct {
	Tenants int64
	Files   int64
	Thumbs  int64
	Missing int64
	Failed  int64
}

func (s encryptStats) String() string {
	return fmt.Sprintf("tenants=%d files=%d thumbnails=%d missing=%d failed=%d",
		s.Tenants, s.Files, s.Thumbs, s.Missing, s.Failed)
}

type encryptCounters struct {
	tenants, files, thumbs, missing, failed atomic.Int64
}

func (c *encryptCounters) snapshot() encryptStats {
	return encryptStats{
		Tenants: c.tenants.Load(),
		Files:   c.files.Load(),
		Thumbs:  c.thumbs.Load(),
		Missing: c.missing.Load(),
		Failed:  c.failed.Load(),
	}
}

// encryptExisting recorre los tenants (o solo opts.Tenant) y cifra en el
// lugar cada archivo con is_encrypted = false. Un archivo que falla se
// cuenta y se sigue; un error de la base corta todo.
func encryptExisting(ctx context.Context, store repository.CredentialStore, dir repository.TenantDirectory, vault *media.Vault, opts encryptOptions) (encryptStats, error) {
	var c encryptCounters

	slugs, err := encryptTargets(ctx, dir, opts.Tenant)
	if err != nil {
		return c.snapshot(), err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultEncryptConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, slug := range slugs {
		slug := slug
		g.Go(func() error {
			return encryptTenant(gctx, store, dir, vault, slug, opts.DryRun, &c)
		})
	}
	err = g.Wait()
	return c.snapshot(), err
}

func encryptTargets(ctx context.Context, dir repository.TenantDirectory, only string) ([]string, error) {
	if only != "" {
		s, err := tenant.NormalizeSlug(only)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	return dir.ListSlugs(ctx)
}

func encryptTenant(ctx context.Context, store repository.CredentialStore, dir repository.TenantDirectory, vault *media.Vault, slug string, dryRun bool, c *encryptCounters) error {
	log := logger.From(ctx).With(logger.Layer("cli"), logger.Component("encrypt-existing"), logger.TenantSlug(slug))

	schema, err := tenant.SchemaName(slug)
	if err != nil {
		log.Warn("skipping invalid slug", logger.Err(err))
		return nil
	}
	ok, err := dir.SchemaExists(ctx, schema)
	if err != nil {
		return fmt.Errorf("%s: %w", slug, err)
	}
	if !ok {
		log.Warn("skipping tenant without schema")
		return nil
	}
	ts, err := store.ForTenant(schema)
	if err != nil {
		return fmt.Errorf("%s: %w", slug, err)
	}
	files, err := ts.Files().ListPlaintext(ctx)
	if err != nil {
		return fmt.Errorf("%s: list files: %w", slug, err)
	}
	c.tenants.Add(1)
	log.Info("tenant scanned", logger.Count(len(files)), logger.Bool("dry_run", dryRun))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		flog := log.With(logger.String("kind", string(f.Kind)), logger.Path(f.StoragePath))
		if dryRun {
			flog.Info("would encrypt", logger.Bool("thumbnail", f.ThumbnailPath != ""))
			c.files.Add(1)
			continue
		}

		blob, err := vault.EncryptInPlace(ctx, slug, f.StoragePath)
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				flog.Warn("file missing on disk, row left untouched")
				c.missing.Add(1)
			} else {
				flog.Error("encrypt failed", logger.Err(err))
				c.failed.Add(1)
			}
			continue
		}
		meta := repository.EncryptionMeta{IV: blob.IV[:], Tag: blob.Tag[:]}

		if f.ThumbnailPath != "" {
			thumb, err := vault.EncryptInPlace(ctx, slug, f.ThumbnailPath)
			switch {
			case err == nil:
				meta.ThumbIV, meta.ThumbTag = thumb.IV[:], thumb.Tag[:]
				c.thumbs.Add(1)
			case errors.Is(err, media.ErrNotFound):
				flog.Warn("thumbnail missing on disk", logger.String("thumbnail", f.ThumbnailPath))
			default:
				// El archivo principal ya quedó cifrado: se registra igual para no
				// cifrarlo dos veces en la próxima corrida.
				flog.Error("thumbnail encrypt failed", logger.Err(err))
				c.failed.Add(1)
			}
		}

		if err := ts.Files().MarkEncrypted(ctx, f, meta); err != nil {
			flog.Error("file encrypted but row not updated; record iv/tag manually",
				logger.String("iv", hex.EncodeToString(meta.IV)),
				logger.String("tag", hex.EncodeToString(meta.Tag)),
				logger.Err(err))
			c.failed.Add(1)
			continue
		}
		c.files.Add(1)
	}
	return nil
}

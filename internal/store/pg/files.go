package pg

import (
	"context"
	"fmt"

	"github.com/minispace/minispace/internal/domain/repository"
)

type fileRepo struct{ t *tenantStore }

func (r *fileRepo) ListPlaintext(ctx context.Context) ([]repository.PlaintextFile, error) {
	q := fmt.Sprintf(`
		SELECT 'media', id, storage_path, COALESCE(thumbnail_path, '')
		FROM %s WHERE is_encrypted = FALSE OR is_encrypted IS NULL
		UNION ALL
		SELECT 'document', id, storage_path, ''
		FROM %s WHERE is_encrypted = FALSE OR is_encrypted IS NULL`,
		r.t.table("media"), r.t.table("documents"))
	rows, err := r.t.pool.Query(ctx, q)
	if err != nil {
		return nil, mapErr("list plaintext files", err)
	}
	defer rows.Close()

	var out []repository.PlaintextFile
	for rows.Next() {
		var f repository.PlaintextFile
		var kind string
		if err := rows.Scan(&kind, &f.ID, &f.StoragePath, &f.ThumbnailPath); err != nil {
			return nil, mapErr("scan plaintext file", err)
		}
		f.Kind = repository.FileKind(kind)
		out = append(out, f)
	}
	return out, mapErr("list plaintext files", rows.Err())
}

func (r *fileRepo) MarkEncrypted(ctx context.Context, f repository.PlaintextFile, meta repository.EncryptionMeta) error {
	var (
		q    string
		args []any
	)
	switch f.Kind {
	case repository.FileKindMedia:
		q = fmt.Sprintf(`
			UPDATE %s SET is_encrypted = TRUE, encryption_iv = $2, encryption_tag = $3,
				thumbnail_encryption_iv = $4, thumbnail_encryption_tag = $5
			WHERE id = $1`, r.t.table("media"))
		args = []any{f.ID, meta.IV, meta.Tag, meta.ThumbIV, meta.ThumbTag}
	case repository.FileKindDocument:
		q = fmt.Sprintf(`
			UPDATE %s SET is_encrypted = TRUE, encryption_iv = $2, encryption_tag = $3, updated_at = NOW()
			WHERE id = $1`, r.t.table("documents"))
		args = []any{f.ID, meta.IV, meta.Tag}
	default:
		return fmt.Errorf("pg: unknown file kind %q", f.Kind)
	}
	tag, err := r.t.pool.Exec(ctx, q, args...)
	if err != nil {
		return mapErr("mark file encrypted", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

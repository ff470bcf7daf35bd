package repository

import (
	"context"

	"github.com/google/uuid"
)

// FileKind distingue las dos tablas con archivos cifrables.
type FileKind string

const (
	FileKindMedia    FileKind = "media"
	FileKindDocument FileKind = "document"
)

// PlaintextFile es un archivo que todavía está en claro en disco.
type PlaintextFile struct {
	Kind          FileKind
	ID            uuid.UUID
	StoragePath   string
	ThumbnailPath string // vacío si no tiene
}

// EncryptionMeta es lo que se guarda en la fila al cifrar: IV y tag del
// archivo principal y, si hay, de la miniatura.
type EncryptionMeta struct {
	IV       []byte
	Tag      []byte
	ThumbIV  []byte
	ThumbTag []byte
}

// EncryptedFileRepository lo usa la migración de archivos existentes.
type EncryptedFileRepository interface {
	// ListPlaintext devuelve media y documentos con is_encrypted = false.
	ListPlaintext(ctx context.Context) ([]PlaintextFile, error)

	// MarkEncrypted guarda IV/tag y marca la fila como cifrada.
	MarkEncrypted(ctx context.Context, f PlaintextFile, meta EncryptionMeta) error
}

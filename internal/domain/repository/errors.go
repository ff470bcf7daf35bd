package repository

import "errors"

var (
	// ErrNotFound indica que el recurso no existe o que la transición
	// condicional no aplicó (ya usado, ya revocado, expirado).
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (ej: email ya registrado).
	ErrConflict = errors.New("conflict")

	// ErrInvalidSchema indica un nombre de schema que no pasó validación.
	ErrInvalidSchema = errors.New("invalid tenant schema")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
